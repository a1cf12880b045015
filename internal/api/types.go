package api

import (
	"github.com/go-hive/hivewatch/internal/suppression"
	"github.com/go-hive/hivewatch/internal/suppression/model"
	"github.com/go-hive/hivewatch/internal/surveillance"
)

type WatchRequest struct {
	EntityID string `json:"entityId"`
	Label    string `json:"label,omitempty"`
}

type WatchListResponse struct {
	Entities []surveillance.WatchedEntity `json:"entities"`
}

type AlertResponse struct {
	Alert *surveillance.ActiveAlert `json:"alert"`
}

type CloseResponse struct {
	Closed bool `json:"closed"`
}

// SuppressRequest mutes the active alert for Minutes, or until reactivated when Session is set.
type SuppressRequest struct {
	Minutes int  `json:"minutes,omitempty"`
	Session bool `json:"session,omitempty"`
}

type SuppressResponse struct {
	Suppressed bool `json:"suppressed"`
}

type SuppressionResponse struct {
	EntityID string `json:"entityId"`
	suppression.Status
}

type RulesResponse struct {
	Rules []model.Rule `json:"rules"`
}

type ReactivateResponse struct {
	Reactivated bool `json:"reactivated"`
}
