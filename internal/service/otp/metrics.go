package otp

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	otpIssuedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "otp_issued_total",
			Help: "Total OTP codes issued",
		},
	)

	otpVerifyTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "otp_verify_total",
			Help: "Total OTP verification attempts by outcome",
		},
		[]string{"outcome"},
	)

	otpStoreErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "otp_store_errors_total",
			Help: "Total OTP store backend failures",
		},
		[]string{"op"},
	)
)
