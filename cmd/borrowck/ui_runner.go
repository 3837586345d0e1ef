package main

import (
	"context"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"borrowck/internal/driver"
	"borrowck/internal/source"
	"borrowck/internal/ui"
)

type checkOutcome struct {
	result *driver.FileResult
	err    error
}

// checkFileWithUI runs driver.CheckFile while a Bubble Tea program renders
// its progress events.
func checkFileWithUI(ctx context.Context, fs *source.FileSet, path string, opts driver.Options) (*driver.FileResult, error) {
	events := make(chan driver.Event, 256)
	outcomeCh := make(chan checkOutcome, 1)

	go func() {
		o := opts
		o.Progress = driver.ChannelSink{Ch: events}
		res, err := driver.CheckFile(ctx, fs, path, o)
		outcomeCh <- checkOutcome{result: res, err: err}
		close(events)
	}()

	model := ui.NewProgressModel("checking "+path, events)
	program := tea.NewProgram(model, tea.WithOutput(os.Stdout))
	_, uiErr := program.Run()
	if uiErr != nil {
		// дочитываем события, чтобы горутина не зависла
		go func() {
			for range events {
			}
		}()
	}
	outcome := <-outcomeCh
	if uiErr != nil {
		return outcome.result, uiErr
	}
	return outcome.result, outcome.err
}
