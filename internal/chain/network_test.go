package chain

import (
	"testing"
	"time"
)

func TestNetwork_SlotTime(t *testing.T) {
	net := Network{
		Genesis:    time.Unix(1000, 0).UTC(),
		SlotLength: time.Second,
	}

	tests := []struct {
		name string
		slot uint64
		want time.Time
	}{
		{
			name: "slot zero is genesis",
			slot: 0,
			want: net.Genesis,
		},
		{
			name: "one slot",
			slot: 1,
			want: net.Genesis.Add(time.Second),
		},
		{
			name: "mainnet scale slot",
			slot: 91_039_899,
			want: net.Genesis.Add(91_039_899 * time.Second),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := net.SlotTime(tt.slot)
			if !got.Equal(tt.want) {
				t.Errorf("SlotTime(%d) = %v, want %v", tt.slot, got, tt.want)
			}
		})
	}
}

func TestNetwork_SlotTime_SubSecondSlots(t *testing.T) {
	net := Network{
		Genesis:    time.Unix(0, 0).UTC(),
		SlotLength: 250 * time.Millisecond,
	}

	got := net.SlotTime(8)
	want := net.Genesis.Add(2 * time.Second)
	if !got.Equal(want) {
		t.Errorf("SlotTime(8) = %v, want %v", got, want)
	}
}

func TestByName(t *testing.T) {
	n, err := ByName("mainnet")
	if err != nil {
		t.Fatalf("ByName(mainnet) error = %v", err)
	}
	if n.Magic != 764824073 {
		t.Errorf("mainnet magic = %d, want 764824073", n.Magic)
	}
	if n.SlotTime(0).Unix() != 1591566291 {
		t.Errorf("mainnet genesis = %d, want 1591566291", n.SlotTime(0).Unix())
	}

	if _, err := ByName("devnet"); err == nil {
		t.Error("ByName(devnet) expected error, got nil")
	}
}

func TestByName_CaseInsensitive(t *testing.T) {
	n, err := ByName("Preprod")
	if err != nil {
		t.Fatalf("ByName(Preprod) error = %v", err)
	}
	if n.Magic != 1 {
		t.Errorf("preprod magic = %d, want 1", n.Magic)
	}
}
