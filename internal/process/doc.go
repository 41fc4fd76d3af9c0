// Package process runs the child programs the editor depends on.
//
// Two shapes are provided:
//
//   - Runner executes a command to completion and captures its output.
//     The code quality checker uses it to invoke the Python linters.
//   - Supervisor starts long-lived processes (the Python runner and the
//     local interactive interpreter) and tracks them until they exit,
//     terminating any that remain when the editor shuts down.
//
//	supervisor := process.NewSupervisor()
//	defer supervisor.Shutdown(2 * time.Second)
//
//	proc, err := supervisor.Start("run", exec.Command("python3", "blink.py"))
//	if err != nil {
//	    return err
//	}
//	<-proc.Done()
//
// Both Supervisor and Process are safe for concurrent use.
package process
