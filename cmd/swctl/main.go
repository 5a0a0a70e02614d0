// Command swctl is the CLI front end for the coordination kernel: it
// wires the path resolver, configuration loader, and domain stores
// (session, task, project, context, wave, mailbox, workspace, swarm,
// cleanup) into one cobra command tree.
package main

func main() {
	Execute()
}
