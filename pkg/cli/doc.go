/*
Package cli provides command-line interface utilities for the vandamme
command: output formatters, typed command errors, and signal handling.

Output Formatting:

Commands that support --output render their results through a Formatter:

	formatter := cli.NewFormatter(cli.FormatJSON)
	if err := formatter.FormatTo(os.Stdout, rows); err != nil {
		return err
	}

Signal Handling:

For graceful shutdown on SIGINT/SIGTERM:

	ctx := cli.SetupSignalHandler()
	// Use ctx for operations that should be cancelled on shutdown
*/
package cli
