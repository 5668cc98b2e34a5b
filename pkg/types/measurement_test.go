package types

import (
	"encoding/json"
	"testing"
	"time"
)

func TestMeasurementJSONContract(t *testing.T) {
	m := Measurement{
		Node:      Node{Host: "1.2.3.4", Port: 1984, Protocol: ProtocolHTTP},
		Ping:      PingResult{Outcome: OutcomeSuccess, TTFB: 123 * time.Millisecond},
		Retrieval: RetrievalResult{TxID: "tx-1", Outcome: OutcomeTimeout},
	}

	payload, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("marshal measurement: %v", err)
	}

	want := `{"node":{"host":"1.2.3.4","port":1984,"protocol":"http"},` +
		`"ping":{"alive":true,"timeout":null,"ttfbMs":123},` +
		`"retrieval":{"txId":"tx-1","alive":false,"timeout":true,"durationMs":null}}`
	if string(payload) != want {
		t.Fatalf("unexpected payload:\n got %s\nwant %s", payload, want)
	}
}

func TestResultWireShapes(t *testing.T) {
	cases := []struct {
		name   string
		result any
		want   string
	}{
		{"ping failure", PingResult{Outcome: OutcomeFailure, TTFB: time.Second}, `{"alive":false,"timeout":null,"ttfbMs":null}`},
		{"ping timeout", PingResult{Outcome: OutcomeTimeout}, `{"alive":false,"timeout":true,"ttfbMs":null}`},
		{"ping success", PingResult{Outcome: OutcomeSuccess}, `{"alive":true,"timeout":null,"ttfbMs":0}`},
		{"retrieval failure", RetrievalResult{TxID: "a", Outcome: OutcomeFailure}, `{"txId":"a","alive":false,"timeout":null,"durationMs":null}`},
		{"retrieval success", RetrievalResult{TxID: "a", Outcome: OutcomeSuccess, Duration: 1500 * time.Millisecond}, `{"txId":"a","alive":true,"timeout":null,"durationMs":1500}`},
	}
	for _, tc := range cases {
		payload, err := json.Marshal(tc.result)
		if err != nil {
			t.Fatalf("%s: marshal: %v", tc.name, err)
		}
		if string(payload) != tc.want {
			t.Fatalf("%s: got %s want %s", tc.name, payload, tc.want)
		}
	}
}

func TestOutcomeString(t *testing.T) {
	if OutcomeSuccess.String() != "success" || OutcomeTimeout.String() != "timeout" || OutcomeFailure.String() != "failure" {
		t.Fatalf("unexpected outcome names")
	}
	if (PingResult{Outcome: OutcomeTimeout}).Alive() {
		t.Fatalf("timeout must not be alive")
	}
}
