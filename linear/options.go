package linear

// Option is a function that configures LinearRegression
type Option func(*LinearRegression)

// WithFitIntercept sets whether to calculate the intercept
func WithFitIntercept(fit bool) Option {
	return func(lr *LinearRegression) {
		lr.fitIntercept = fit
	}
}

// WithAlpha sets the L2 penalty. 0 gives ordinary least squares, a
// positive value gives ridge regression.
func WithAlpha(alpha float64) Option {
	return func(lr *LinearRegression) {
		lr.alpha = alpha
	}
}

// WithRcond sets the relative cutoff below which singular values are
// treated as zero.
func WithRcond(rcond float64) Option {
	return func(lr *LinearRegression) {
		lr.rcond = rcond
	}
}
