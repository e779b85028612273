package config

// LimitsConfig holds the tunables for AgentLimiter, MonitorBudget, the
// queues, ContextTape, and InteractionTimeline. Hot-reloadable.
type LimitsConfig struct {
	// AgentLimiterCapacity is the global AgentLimiter capacity (spec default 16).
	AgentLimiterCapacity int `yaml:"agent_limiter_capacity"`

	// MonitorBudget is the per-monitor concurrent-action budget (spec default 4).
	MonitorBudget int `yaml:"monitor_budget"`

	// MainQueueCap is the per-monitor MainQueue bound (spec default 10).
	MainQueueCap int `yaml:"main_queue_cap"`

	// MainMessageSoftCap is the ContextTape main-message soft cap before
	// pruning keeps the most recent half (spec open question, decided: 200).
	MainMessageSoftCap int `yaml:"main_message_soft_cap"`

	// InteractionTimelineCap is the InteractionTimeline ring capacity
	// (spec open question, decided: 64).
	InteractionTimelineCap int `yaml:"interaction_timeline_cap"`

	// LimiterWaitSeconds bounds how long MainTaskProcessor waits for a
	// Limiter slot when spawning an ephemeral agent. WindowTaskProcessor and
	// TaskDispatcher do not wait; they fail at once when no slot is free.
	LimiterWaitSeconds int `yaml:"limiter_wait_seconds"`
}

func defaultLimitsConfig() LimitsConfig {
	return LimitsConfig{
		AgentLimiterCapacity:   16,
		MonitorBudget:          4,
		MainQueueCap:           10,
		MainMessageSoftCap:     200,
		InteractionTimelineCap: 64,
		LimiterWaitSeconds:     10,
	}
}
