// Package tsmodel holds the two one-step-ahead predictors used for rich
// category histories and their persisted artifact formats.
//
// The seasonal model is an autoregression with ordinary lags and lags at
// multiples of the seasonal period, estimated by least squares. The
// sequence model is a linear regressor over a fixed window of min-max
// scaled observations, trained by gradient descent.
package tsmodel
