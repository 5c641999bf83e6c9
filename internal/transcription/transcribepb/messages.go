// Package transcribepb holds the wire contract of ito.TranscribeService.
//
//	service TranscribeService {
//	  rpc TranscribeStream(stream StreamRequest) returns (TranscriptionResponse);
//	}
//	message StreamRequest         { bytes audio_data = 1; StreamConfig config = 2; }
//	message StreamConfig          { string mode = 1; string context_text = 2; string vocabulary = 3; string selected_text = 4; }
//	message TranscriptionResponse { string transcript = 1; ErrorDetail error = 2; }
//	message ErrorDetail           { string message = 1; string kind = 2; }
package transcribepb

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

type StreamRequest struct {
	AudioData []byte
	Config    *StreamConfig
}

type StreamConfig struct {
	Mode         string
	ContextText  string
	Vocabulary   string
	SelectedText string
}

type TranscriptionResponse struct {
	Transcript string
	Error      *ErrorDetail
}

type ErrorDetail struct {
	Message string
	Kind    string
}

func (m *StreamRequest) GetAudioData() []byte {
	if m == nil {
		return nil
	}
	return m.AudioData
}

func (m *StreamRequest) GetConfig() *StreamConfig {
	if m == nil {
		return nil
	}
	return m.Config
}

func (m *TranscriptionResponse) GetTranscript() string {
	if m == nil {
		return ""
	}
	return m.Transcript
}

func (m *TranscriptionResponse) GetError() *ErrorDetail {
	if m == nil {
		return nil
	}
	return m.Error
}

func (m *StreamRequest) marshal(b []byte) []byte {
	if len(m.AudioData) > 0 {
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendBytes(b, m.AudioData)
	}
	if m.Config != nil {
		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendBytes(b, m.Config.marshal(nil))
	}
	return b
}

func (m *StreamRequest) unmarshal(b []byte) error {
	*m = StreamRequest{}
	return walk(b, func(num protowire.Number, v []byte) error {
		switch num {
		case 1:
			m.AudioData = append([]byte(nil), v...)
		case 2:
			m.Config = new(StreamConfig)
			return m.Config.unmarshal(v)
		}
		return nil
	})
}

func (m *StreamConfig) marshal(b []byte) []byte {
	b = appendString(b, 1, m.Mode)
	b = appendString(b, 2, m.ContextText)
	b = appendString(b, 3, m.Vocabulary)
	return appendString(b, 4, m.SelectedText)
}

func (m *StreamConfig) unmarshal(b []byte) error {
	*m = StreamConfig{}
	return walk(b, func(num protowire.Number, v []byte) error {
		switch num {
		case 1:
			m.Mode = string(v)
		case 2:
			m.ContextText = string(v)
		case 3:
			m.Vocabulary = string(v)
		case 4:
			m.SelectedText = string(v)
		}
		return nil
	})
}

func (m *TranscriptionResponse) marshal(b []byte) []byte {
	b = appendString(b, 1, m.Transcript)
	if m.Error != nil {
		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendBytes(b, m.Error.marshal(nil))
	}
	return b
}

func (m *TranscriptionResponse) unmarshal(b []byte) error {
	*m = TranscriptionResponse{}
	return walk(b, func(num protowire.Number, v []byte) error {
		switch num {
		case 1:
			m.Transcript = string(v)
		case 2:
			m.Error = new(ErrorDetail)
			return m.Error.unmarshal(v)
		}
		return nil
	})
}

func (m *ErrorDetail) marshal(b []byte) []byte {
	b = appendString(b, 1, m.Message)
	return appendString(b, 2, m.Kind)
}

func (m *ErrorDetail) unmarshal(b []byte) error {
	*m = ErrorDetail{}
	return walk(b, func(num protowire.Number, v []byte) error {
		switch num {
		case 1:
			m.Message = string(v)
		case 2:
			m.Kind = string(v)
		}
		return nil
	})
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

// walk visits every length-delimited field and skips all others, so unknown
// fields from newer peers are tolerated.
func walk(b []byte, fn func(protowire.Number, []byte) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("transcribepb: %w", protowire.ParseError(n))
		}
		b = b[n:]

		if typ != protowire.BytesType {
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return fmt.Errorf("transcribepb: field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
			continue
		}

		v, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return fmt.Errorf("transcribepb: field %d: %w", num, protowire.ParseError(n))
		}
		if err := fn(num, v); err != nil {
			return err
		}
		b = b[n:]
	}
	return nil
}
