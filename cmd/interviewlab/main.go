// interviewlab runs the adaptive interview research engine: create and start
// projects, merge interview analyses, inspect scripts and hypothesis maps,
// and write reports.
//
// Usage:
//
//	interviewlab init --project=<id> --question=<text> [--language=en|ru]
//	interviewlab start --project=<id>
//	interviewlab process --project=<id> --transcript=<file> [--analysis=<file>]
//	interviewlab status [--project=<id>]
//	interviewlab report --project=<id> [-o report.md]
//	interviewlab demo [--scenario=hackathon]
//	interviewlab serve [--metrics-addr=:9090]
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
