package validate

import "testing"

func TestPayloadAcceptsWireCommands(t *testing.T) {
	good := []string{
		`{"createsource":{"id":"s1","uri":"file:///a.mp4"}}`,
		`{"createdestination":{"id":"d1","family":"LocalPlayback","audio":false}}`,
		`{"createdestination":{"id":"d2","family":{"Rtmp":{"uri":"rtmp://h/app"}}}}`,
		`{"createmixer":{"id":"m1","config":{"width":1280,"fallback-image":"x.png"}}}`,
		`{"connect":{"link_id":"l1","src_id":"s1","sink_id":"m1","config":{"video::alpha":0.5}}}`,
		`{"start":{"id":"s1","cue_time":"2024-03-01T12:00:00Z","end_time":null}}`,
		`{"getinfo":{}}`,
		`{"addcontrolpoint":{"controllee_id":"m1","property":"width","control_point":{"time":"2024-03-01T12:00:00Z","value":640,"mode":"interpolate"}}}`,
		`{"removecontrolpoint":{"controllee_id":"m1","property":"width","id":"p1"}}`,
		`{"id":"6f1c1f4e-7f0e-4f8e-9a56-0b1f3f9d2a11","command":{"remove":{"id":"s1"}}}`,
	}
	for _, in := range good {
		if err := Payload([]byte(in)); err != nil {
			t.Errorf("Payload(%s) = %v", in, err)
		}
	}
}

func TestPayloadRejectsMalformed(t *testing.T) {
	bad := []string{
		`not json`,
		`{}`,
		`{"explode":{}}`,
		`{"remove":{}}`,
		`{"remove":{"id":"a"},"start":{"id":"a"}}`,
		`{"createdestination":{"id":"d1","family":"Carrier pigeon"}}`,
		`{"start":{"id":"s1","cue_time":"tomorrow"}}`,
		`{"removecontrolpoint":{"controllee_id":"m1","property":"width"}}`,
		`{"id":"not-a-uuid","command":{"remove":{"id":"s1"}}}`,
		`{"remove":{"id":"a"}} {"remove":{"id":"b"}}`,
	}
	for _, in := range bad {
		if err := Payload([]byte(in)); err == nil {
			t.Errorf("Payload(%s) accepted malformed input", in)
		}
	}
}
