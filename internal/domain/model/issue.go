package model

// CodeIssue is a single finding produced by the analyzer. Issues are scoped to
// exactly one analysis run and are immutable once the run reaches a terminal
// state.
type CodeIssue struct {
	ID       string
	RunID    string
	FilePath string
	Line     int
	EndLine  int
	Severity Severity
	Category string
	Message  string
	// Explanation is the analyzer's longer-form reasoning for the finding.
	Explanation  string
	SuggestedFix string
	CodeSnippet  string
}

// SeverityCounts holds per-severity issue counters for a run.
type SeverityCounts struct {
	Critical int
	High     int
	Medium   int
	Low      int
	Info     int
}

// Total returns the sum of all buckets. For a completed run this always
// equals the size of the run's issue set.
func (c SeverityCounts) Total() int {
	return c.Critical + c.High + c.Medium + c.Low + c.Info
}

// Get returns the counter for the given severity.
func (c SeverityCounts) Get(s Severity) int {
	switch s {
	case SeverityCritical:
		return c.Critical
	case SeverityHigh:
		return c.High
	case SeverityMedium:
		return c.Medium
	case SeverityLow:
		return c.Low
	case SeverityInfo:
		return c.Info
	}
	return 0
}

// Highest returns the most severe severity with a non-zero count and true,
// or ("", false) when all buckets are zero.
func (c SeverityCounts) Highest() (Severity, bool) {
	for _, s := range Severities {
		if c.Get(s) > 0 {
			return s, true
		}
	}
	return "", false
}

// CountBySeverity partitions issues into per-severity counters. It is a pure
// function of the issue list: order-independent and idempotent. Issues with an
// unknown severity are counted as info.
func CountBySeverity(issues []CodeIssue) SeverityCounts {
	var counts SeverityCounts
	for _, issue := range issues {
		switch issue.Severity {
		case SeverityCritical:
			counts.Critical++
		case SeverityHigh:
			counts.High++
		case SeverityMedium:
			counts.Medium++
		case SeverityLow:
			counts.Low++
		default:
			counts.Info++
		}
	}
	return counts
}
