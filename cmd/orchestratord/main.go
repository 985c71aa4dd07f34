// Command orchestratord drives a fleet of externally spawned coding-agent
// processes to completion on a decomposed task. Each invocation of this CLI
// is a thin operator-facing front end over the internal/ops boundary layer
// (the RPC tool registry that would expose the same operations over the
// wire is out of this module's scope); `orchestratord serve` is the one
// subcommand that stays resident, running the completion monitor until
// signaled to stop.
package main

func main() {
	Execute()
}
