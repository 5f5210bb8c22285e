package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"
)

func runStatus(args []string) error {
	var f cliFlags
	fs := newFlagSet("status", &f)
	asJSON := fs.Bool("json", false, "print the raw status report as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	id, err := sessionArg(fs)
	if err != nil {
		return err
	}

	a, err := newApp(context.Background(), f, false)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Readiness.RequestTimeout)
	defer cancel()
	report, err := a.backend.SessionStatus(ctx, id)
	if err != nil {
		return err
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	fmt.Printf("session:  %s\n", id)
	fmt.Printf("phase:    %s\n", report.Phase)
	fmt.Printf("ready:    %t\n", report.Ready)
	if report.Message != "" {
		fmt.Printf("message:  %s\n", report.Message)
	}
	if report.Error != "" {
		fmt.Printf("error:    %s\n", report.Error)
	}
	if p := report.Progress; p != nil {
		if p.Percent != nil {
			fmt.Printf("progress: %.0f%%\n", *p.Percent)
		}
		if p.EtaMs != nil {
			fmt.Printf("eta:      %s\n", (time.Duration(*p.EtaMs) * time.Millisecond).Round(time.Second))
		}
	}
	return nil
}
