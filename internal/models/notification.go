package models

// NotificationType системное событие, о котором уведомляются администраторы.
type NotificationType string

const (
	NotifySyncError      NotificationType = "SYNC_ERROR"
	NotifySyncCompleted  NotificationType = "SYNC_COMPLETED"
	NotifyPlanUpdated    NotificationType = "PLAN_UPDATED"
	NotifyPanelAnomaly   NotificationType = "PANEL_ANOMALY"
	NotifySquadsRepaired NotificationType = "SQUADS_REPAIRED"
)

// NotificationSettings включённые типы системных уведомлений.
type NotificationSettings struct {
	SyncError      bool `json:"sync_error"`
	SyncCompleted  bool `json:"sync_completed"`
	PlanUpdated    bool `json:"plan_updated"`
	PanelAnomaly   bool `json:"panel_anomaly"`
	SquadsRepaired bool `json:"squads_repaired"`
}

// DefaultNotificationSettings все уведомления включены.
func DefaultNotificationSettings() NotificationSettings {
	return NotificationSettings{
		SyncError:      true,
		SyncCompleted:  true,
		PlanUpdated:    true,
		PanelAnomaly:   true,
		SquadsRepaired: true,
	}
}

// Enabled сообщает, включён ли тип уведомления. Неизвестные типы выключены.
func (s NotificationSettings) Enabled(t NotificationType) bool {
	switch t {
	case NotifySyncError:
		return s.SyncError
	case NotifySyncCompleted:
		return s.SyncCompleted
	case NotifyPlanUpdated:
		return s.PlanUpdated
	case NotifyPanelAnomaly:
		return s.PanelAnomaly
	case NotifySquadsRepaired:
		return s.SquadsRepaired
	}
	return false
}
