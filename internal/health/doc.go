// Package health watches freshly provisioned instances until they are fit to
// receive traffic and registers them with their load balancer pool.
//
// Each instance endpoint moves through awaiting-health to healthy once a
// configured number of consecutive probes succeed, then to registered once
// [deploy.Provider.AddToPool] has accepted it. An endpoint whose observation
// window elapses first becomes unhealthy, which is terminal for the run and
// surfaced in the [Report] rather than remediated.
package health
