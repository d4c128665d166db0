// Package process runs a command line as a supervised subprocess.
//
// A Process owns one command at a time:
//   - Run blocks until the context ends or the subprocess exits on its own
//   - Shutdown is SIGINT first, SIGKILL after a grace period
//   - Restart swaps the command and starts it again in place
//   - Output lines go to a logger, leveled by a pluggable LogParser
//
// Example:
//
//	p := process.New("preview", cmdline, logger,
//	    process.WithLogParser(logging.GetLogger("ffmpeg"), ffmpeg.ParseLine))
//	go func() { <-rebuilt; p.Restart(newCmdline) }()
//	os.Exit(p.Run(ctx))
package process
