package main

import (
	"fmt"
	"strings"
)

// EventSink abstracts the display layer so the Bubble Tea TUI and the
// headless console renderer receive the same turn/recording events from
// the dispatch worker.
type EventSink interface {
	TurnStart(vector, model string)
	Chunk(text string, thought bool)
	Status(text string)
	TurnError(text string)
	TurnEnd()
	RecordingStart()
	RecordingStop()
	ModeLine(text string)
	Ready()
}

// consoleSink renders turns as a plain scrolling stream for -tui=false.
type consoleSink struct{}

func (consoleSink) TurnStart(vector, model string) {
	fmt.Printf("\n%s\n[ %s · %s ]\n", strings.Repeat("=", 60), strings.ToUpper(vector), model)
}

func (consoleSink) Chunk(text string, thought bool) {
	if thought {
		return
	}
	fmt.Print(text)
}

func (consoleSink) Status(text string)    { fmt.Printf("\n[i] %s\n", text) }
func (consoleSink) TurnError(text string) { fmt.Printf("\n[!] %s\n", text) }
func (consoleSink) TurnEnd()              { fmt.Println() }
func (consoleSink) RecordingStart()       { fmt.Println("\n[*] RECORDING... (press talk to stop)") }
func (consoleSink) RecordingStop()        { fmt.Println("[*] Processing...") }
func (consoleSink) ModeLine(text string)  { fmt.Printf("[i] %s\n", text) }
func (consoleSink) Ready()                { fmt.Println("[READY]") }
