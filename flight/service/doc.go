// Package service provides the business logic layer for rocketflight.
//
// Core Interfaces:
//
// FlightService is the main service interface providing high-level flight
// operations. FlightManager handles flight creation, retrieval and lifecycle.
// PresetManager loads the named initial states flights launch from.
// Notifier receives every commit made to any flight's store.
//
// Architecture:
//
// The service layer sits between the transports (HTTP, WebSocket, MCP, CLI)
// and the per-flight state stores. Each flight owns an independent store;
// physics round-trips go through that store so its commit rules apply no
// matter which transport issued the request.
//
// Usage:
//
//	flights := session.NewManager(factory)
//	presetMgr, _ := presets.NewManager("presets")
//	svc := service.NewFlightService(flights, presetMgr, service.WithNotifier(hub))
//
//	info, err := svc.CreateFlight(ctx, "heavy")
//	if err != nil {
//		return err
//	}
//
//	snap, err := svc.Integrate(ctx, info.ID, nil)
//
// Stepping:
//
// Step runs up to MaxSteps integrations back to back, each one starting from
// the state the previous one committed. It stops at the first failure and
// reports how many steps ran.
package service
