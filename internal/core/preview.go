package core

// DefaultSampleErrorCap is how many error samples a preview carries.
const DefaultSampleErrorCap = 50

// Aggregate folds outcomes into a PreviewResult. Counts cover every outcome;
// SampleErrors holds the first sampleCap error-severity entries in row order.
// A sampleCap of zero or less uses DefaultSampleErrorCap.
func Aggregate(outcomes []ValidationOutcome, sampleCap int) PreviewResult {
	if sampleCap <= 0 {
		sampleCap = DefaultSampleErrorCap
	}

	result := PreviewResult{
		TotalRows:    len(outcomes),
		SampleErrors: []SampleError{},
	}

	for _, o := range outcomes {
		switch o.Status {
		case StatusValid:
			result.ValidCount++
		case StatusInvalid:
			result.InvalidCount++
		case StatusDuplicateRejected:
			result.DuplicateCount++
		}
		if o.HasWarnings() {
			result.WarningCount++
		}

		for _, fe := range o.Errors {
			if len(result.SampleErrors) >= sampleCap {
				break
			}
			if fe.Severity != SeverityError {
				continue
			}
			result.SampleErrors = append(result.SampleErrors, SampleError{
				Row:        o.Record.SourceRow,
				FieldError: fe,
			})
		}
	}

	return result
}
