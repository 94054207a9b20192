package model

import (
	"time"

	"github.com/google/uuid"
)

type EndpointKind string

const (
	EndpointKindPush  EndpointKind = "push"
	EndpointKindEmail EndpointKind = "email"
)

// NotificationEndpoint is one registered delivery target for one user
// device. Endpoints the transport reports permanently invalid are pruned.
type NotificationEndpoint struct {
	ID         uuid.UUID    `json:"id" db:"id"`
	UserID     uuid.UUID    `json:"user_id" db:"user_id"`
	Kind       EndpointKind `json:"kind" db:"kind"`
	Address    string       `json:"address" db:"address"`
	DeviceName string       `json:"device_name" db:"device_name"`
	CreatedAt  time.Time    `json:"created_at" db:"created_at"`
}

// NotificationPayload is the transport-agnostic notification contract.
type NotificationPayload struct {
	Title string  `json:"title"`
	Body  string  `json:"body"`
	Tag   string  `json:"tag"`
	Data  JSONMap `json:"data,omitempty"`
}

type RegisterEndpointRequest struct {
	Kind       EndpointKind `json:"kind" binding:"required,oneof=push email"`
	Address    string       `json:"address" binding:"required,max=500"`
	DeviceName string       `json:"device_name" binding:"max=100"`
}
