// Package rounds holds the static per-round content of the tournament: the
// source document each round is drawn from, the shared question set, the
// ground-truth answers the arbiter judges against and the per-request timeout
// for team endpoints. The content is fixed at build time and never mutated.
package rounds

import "time"

type Config struct {
	Number       int
	Name         string
	Document     string
	Questions    []string
	GroundTruths []string
	Context      string
	FetchTimeout time.Duration
}

var configs = map[int]Config{
	1: {
		Number:   1,
		Name:     "Qualifiers",
		Document: "docs/annual-report-2024.pdf",
		Questions: []string{
			"What was the total consolidated revenue reported for fiscal year 2024?",
			"Which operating segment grew fastest year over year, and by how much?",
			"What were the three principal risk factors highlighted by management?",
		},
		GroundTruths: []string{
			"Total consolidated revenue for FY2024 was $4.82 billion, up 11% year over year.",
			"The cloud services segment grew fastest, at 27% year over year.",
			"Management highlighted currency exposure, supply chain concentration, and regulatory changes in data-privacy law.",
		},
		Context:      "Answers must be grounded strictly in the 2024 annual report. Figures should be quoted with units and reporting period.",
		FetchTimeout: 60 * time.Second,
	},
	2: {
		Number:   2,
		Name:     "Round of 16",
		Document: "docs/merger-agreement.pdf",
		Questions: []string{
			"What is the termination fee payable by the target company and under which conditions?",
			"Which regulatory approvals are conditions precedent to closing?",
			"Summarize the material adverse effect carve-outs in the agreement.",
		},
		GroundTruths: []string{
			"The target pays a $210 million termination fee if it accepts a superior proposal or the board changes its recommendation.",
			"Closing is conditioned on HSR clearance in the US and merger control approval by the European Commission.",
			"Carve-outs cover general economic conditions, industry-wide changes, acts of war or terrorism, and changes in law or accounting standards, except where disproportionate to peers.",
		},
		Context:      "Answers must cite the governing section of the agreement where possible and avoid speculation beyond the document.",
		FetchTimeout: 60 * time.Second,
	},
	3: {
		Number:   3,
		Name:     "Quarterfinals",
		Document: "docs/clinical-trial-protocol.pdf",
		Questions: []string{
			"What are the primary and secondary endpoints of the trial?",
			"Describe the inclusion and exclusion criteria for patient enrollment.",
			"What is the planned interim analysis schedule and stopping rule?",
			"How are adverse events graded and reported?",
		},
		GroundTruths: []string{
			"The primary endpoint is progression-free survival at 24 months; secondary endpoints are overall survival, objective response rate, and quality-of-life scores.",
			"Inclusion: adults 18-75 with stage III disease, ECOG 0-1, adequate organ function. Exclusion: prior systemic therapy, active CNS metastases, uncontrolled comorbidities.",
			"A single interim analysis occurs after 50% of events, with an O'Brien-Fleming boundary; the trial stops for efficacy at p < 0.005 or for futility below a 20% conditional power threshold.",
			"Adverse events are graded per CTCAE v5.0 and reported to the safety board within 24 hours for grade 3 or higher.",
		},
		Context:      "Answers should use the protocol's own terminology. Precision on numeric thresholds is weighted heavily.",
		FetchTimeout: 90 * time.Second,
	},
	4: {
		Number:   4,
		Name:     "Semifinals",
		Document: "docs/infrastructure-postmortem.pdf",
		Questions: []string{
			"What was the root cause of the outage described in the postmortem?",
			"Reconstruct the incident timeline from first alert to full recovery.",
			"Which remediation items were committed to, and with what priority?",
			"What detection gap allowed the incident to escalate?",
		},
		GroundTruths: []string{
			"A configuration push disabled health checks on the primary load balancer tier, causing traffic to be routed to draining backends.",
			"First alert 09:12 UTC, incident declared 09:31, mitigation by config rollback 10:05, full recovery confirmed 11:40 UTC.",
			"P0: config change validation gate; P1: synthetic probes for the load balancer tier; P2: runbook update and game-day exercise.",
			"Health-check status was not exported as a monitored metric, so the disabling change produced no alert until user-facing errors spiked.",
		},
		Context:      "Answers are judged on factual accuracy against the postmortem and on causal clarity, not on general SRE knowledge.",
		FetchTimeout: 90 * time.Second,
	},
	5: {
		Number:   5,
		Name:     "Grand Final",
		Document: "docs/ipcc-synthesis-excerpt.pdf",
		Questions: []string{
			"What warming range does the report project for 2100 under the intermediate emissions scenario?",
			"Which regions are identified as most exposed to compound coastal flooding risk?",
			"What does the report state about the reversibility of sea level rise?",
			"Summarize the report's assessment of near-term mitigation options in the energy sector.",
			"What confidence levels are attached to the attribution of extreme heat events?",
		},
		GroundTruths: []string{
			"Under SSP2-4.5 the report projects 2.1C to 3.5C of warming by 2100 relative to 1850-1900, with a best estimate of 2.7C.",
			"South and Southeast Asian deltas, small island states, and low-lying West African coastlines are identified as most exposed.",
			"Sea level rise is described as irreversible on centennial to millennial timescales even under strong mitigation, due to committed ice-sheet and ocean heat responses.",
			"Solar and wind are assessed as the lowest-cost near-term options with the largest mitigation potential, alongside methane reductions in fossil fuel operations.",
			"Attribution of increased frequency and intensity of extreme heat to human influence is given 'virtually certain' confidence.",
		},
		Context:      "The final round rewards grounded precision: answers must reflect the excerpt's stated confidence language and numeric ranges.",
		FetchTimeout: 120 * time.Second,
	},
}

// Get returns the content configuration for a round number.
func Get(number int) (Config, bool) {
	cfg, ok := configs[number]
	return cfg, ok
}

// Name returns the display name for a round number, or an empty string.
func Name(number int) string {
	return configs[number].Name
}
