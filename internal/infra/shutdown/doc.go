// Package shutdown runs cleanup hooks when the process stops.
//
// Long-running commands register hooks in dependency order (store first,
// then the loops that use it); hooks run in reverse so loops stop before
// the store closes:
//
//	h := shutdown.NewHandler(10*time.Second, log)
//	h.OnShutdown("store", store.Close)
//	h.OnShutdown("scheduler", stopScheduler)
//	err := h.Wait(ctx)
package shutdown
