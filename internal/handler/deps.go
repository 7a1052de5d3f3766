package handler

import (
	"teamwire/internal/app/realtime"
	"teamwire/internal/app/store"
	"teamwire/internal/configs"
)

// AppDeps bundles the dependencies shared by all handlers.
type AppDeps struct {
	Config    *configs.AppConfig
	Registry  *realtime.Registry
	Router    *realtime.Router
	Delivery  *realtime.Delivery
	Reactions *realtime.Ledger
	Buzzer    *realtime.Buzzer
	Store     store.MessageStore
}
