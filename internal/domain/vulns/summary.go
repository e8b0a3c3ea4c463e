package vulns

// Summarize computes per-severity counts. Pure function; used by both
// progress reporting and the final report payload.
func Summarize(list []Vulnerability) SeverityCounts {
	var c SeverityCounts
	for _, v := range list {
		switch v.Severity {
		case SeverityCritical:
			c.Critical++
		case SeverityHigh:
			c.High++
		case SeverityMedium:
			c.Medium++
		case SeverityLow:
			c.Low++
		case SeverityInformational:
			c.Informational++
		}
		c.Total++
	}
	return c
}
