package models

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestNotReadyAnswer(t *testing.T) {
	a := NotReadyAnswer()
	if a.Status != AnswerNotReady {
		t.Errorf("Status = %v", a.Status)
	}
	if a.Text != NotReadyMessage {
		t.Errorf("Text = %q", a.Text)
	}
	if a.Ready() {
		t.Error("not-ready answer reports Ready")
	}
}

func TestAnswer_JSONStatus(t *testing.T) {
	a := Answer{Status: AnswerGenerated, Text: "42"}
	data, err := json.Marshal(a)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"status":"answered"`) {
		t.Errorf("json = %s", data)
	}
}

func TestChunkEnd(t *testing.T) {
	c := Chunk{Start: 3, Length: 4}
	if c.End() != 7 {
		t.Errorf("End() = %d", c.End())
	}
}
