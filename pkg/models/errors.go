package models

import "errors"

var (
	errTaskMissingMonitor = errors.New("models: main task requires a monitorId")
	errTaskMissingWindow  = errors.New("models: window task requires a windowId")
)
