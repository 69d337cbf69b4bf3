/*
Package main is the phraseforge CLI, the operator's entry point to the
phrase generation pipeline.

Usage:

	phraseforge [command]

Available Commands:

	run       Plan and execute a generation session
	rescore   Re-decide pending review entries under current thresholds
	stats     Show quota progress, duplicate rates, and session state
*/
package main

import "os"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
