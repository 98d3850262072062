package observer

import (
	"errors"
	"testing"

	"github.com/go-i2p/go-siplayer/lib/sip"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		data       string
		method     string
		isResponse bool
	}{
		{"INVITE sip:bob@example.com SIP/2.0\r\nVia: x\r\n\r\n", "INVITE", false},
		{"register sip:example.com SIP/2.0\r\n\r\n", "REGISTER", false},
		{"SIP/2.0 200 OK\r\n\r\n", "", true},
		{"MESSAGE", "MESSAGE", false},
		{"", "", false},
	}
	for _, tt := range tests {
		method, isResponse := Classify([]byte(tt.data))
		assert.Equal(t, tt.method, method, tt.data)
		assert.Equal(t, tt.isResponse, isResponse, tt.data)
	}
}

type recordingMetrics struct {
	dispatched []string
}

func (r *recordingMetrics) RecordStackFailure(string)    {}
func (r *recordingMetrics) RecordBind(string, bool)      {}
func (r *recordingMetrics) SetEndpoints(string, int)     {}
func (r *recordingMetrics) RecordInbound(string, string) {}
func (r *recordingMetrics) RecordDispatch(method string) {
	r.dispatched = append(r.dispatched, method)
}

func TestDispatcherRoutes(t *testing.T) {
	rec := &recordingMetrics{}
	d := New().WithMetrics(rec)

	var invites, responses int
	d.Handle("invite", ProcessorFunc(func(msg *sip.Message) error {
		invites++
		return nil
	}))
	d.HandleResponse(ProcessorFunc(func(msg *sip.Message) error {
		responses++
		return errors.New("transaction not found")
	}))

	var unhandled []string
	d.OnUnhandled(func(msg *sip.Message, method string) {
		unhandled = append(unhandled, method)
	})

	d.ProcessMessage(&sip.Message{ID: "1", Data: []byte("INVITE sip:a SIP/2.0\r\n\r\n")})
	d.ProcessMessage(&sip.Message{ID: "2", Data: []byte("SIP/2.0 180 Ringing\r\n\r\n")})
	d.ProcessMessage(&sip.Message{ID: "3", Data: []byte("SUBSCRIBE sip:a SIP/2.0\r\n\r\n")})

	assert.Equal(t, 1, invites)
	assert.Equal(t, 1, responses)
	assert.Equal(t, []string{"SUBSCRIBE"}, unhandled)
	assert.Equal(t, []string{"INVITE", responseKey}, rec.dispatched)
}
