package chunk

import "testing"

// FuzzParse ensures arbitrary datagrams never panic the parser.
func FuzzParse(f *testing.F) {
	f.Add([]byte{})
	f.Add([]byte{0, 1, 0, 0, 0, 3})
	f.Add(Append(nil, Chunk{FrameID: 5, Index: 0, Total: 3, Payload: []byte("abcd")}))
	f.Fuzz(func(t *testing.T, data []byte) {
		c, err := Parse(data)
		if err != nil {
			return
		}
		if len(c.Payload) > Capacity {
			t.Fatalf("accepted payload of %d bytes", len(c.Payload))
		}
		// A well-formed datagram must round-trip.
		wire := Append(nil, c)
		if len(wire) != len(data) {
			t.Fatalf("round trip length %d != %d", len(wire), len(data))
		}
	})
}
