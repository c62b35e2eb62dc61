package clusterserver

import (
	"encoding/json"
	"testing"
	"time"
)

func TestStatus_MarshalJSON(t *testing.T) {
	since := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	tests := []struct {
		name   string
		status Status
		want   string
	}{
		{
			name:   "Stopped",
			status: Status{},
			want:   `{"upTime":null,"nodes":[]}`,
		},
		{
			name:   "RunningNoNodes",
			status: Status{Running: true, UpTime: 2500 * time.Millisecond},
			want:   `{"upTime":2500,"nodes":[]}`,
		},
		{
			name: "WithNode",
			status: Status{
				Running: true,
				UpTime:  time.Second,
				Nodes: []NodeInfo{{
					ID:            "01j0",
					Name:          "node-1",
					RemoteAddress: "127.0.0.1:40000",
					UpSince:       since,
					UpTime:        750 * time.Millisecond,
				}},
			},
			want: `{"upTime":1000,"nodes":[{"name":"node-1","upTime":750,"upSince":"2026-01-02T03:04:05Z","remoteAddress":"127.0.0.1:40000","id":"01j0"}]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := json.Marshal(tt.status)
			if err != nil {
				t.Fatalf("Marshal() error = %v", err)
			}
			if string(b) != tt.want {
				t.Errorf("Marshal() = %s, want %s", b, tt.want)
			}

			var back Status
			if err := json.Unmarshal(b, &back); err != nil {
				t.Fatalf("Unmarshal() error = %v", err)
			}
			if back.Running != tt.status.Running || back.UpTime != tt.status.UpTime || len(back.Nodes) != len(tt.status.Nodes) {
				t.Errorf("Unmarshal() = %+v, want %+v", back, tt.status)
			}
		})
	}
}
