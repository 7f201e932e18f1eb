package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var wizardTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "mollywood_wizard_transitions_total",
	Help: "Upload session stage transitions.",
}, []string{"from", "to"})

var wizardRejections = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "mollywood_wizard_rejections_total",
	Help: "Admin inputs rejected by stage.",
}, []string{"stage"})

var publishEvents = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "mollywood_publish_events_total",
	Help: "Publisher outcomes: committed, duplicate, rolled_back.",
}, []string{"result"})

var deliveryRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "mollywood_delivery_requests_total",
	Help: "User delivery requests by result.",
}, []string{"result"})

var filesSent = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "mollywood_files_sent_total",
	Help: "Files handed to the transport by result.",
}, []string{"result"})

var membershipChecks = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "mollywood_membership_checks_total",
	Help: "Channel membership lookups by status.",
}, []string{"status"})
