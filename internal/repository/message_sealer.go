package repository

import (
	"fmt"

	"github.com/portfolio/backend/internal/model"
)

// messageSealer is the single place where message fields cross the
// encryption boundary. seal runs on every write, open on every read.
type messageSealer struct {
	cipher FieldCipher
}

// seal returns a copy of m whose email, phone, message and ip address are ciphertext.
func (s messageSealer) seal(m *model.Message) (*model.Message, error) {
	out := cloneMessage(m)
	var err error
	if out.Email, err = s.cipher.Encrypt(m.Email); err != nil {
		return nil, fmt.Errorf("seal email: %w", err)
	}
	if out.Phone, err = s.cipher.Encrypt(m.Phone); err != nil {
		return nil, fmt.Errorf("seal phone: %w", err)
	}
	if out.Message, err = s.cipher.Encrypt(m.Message); err != nil {
		return nil, fmt.Errorf("seal message: %w", err)
	}
	if out.IPAddress, err = s.cipher.Encrypt(m.IPAddress); err != nil {
		return nil, fmt.Errorf("seal ip address: %w", err)
	}
	return out, nil
}

// open returns a plaintext copy of a sealed record.
func (s messageSealer) open(m *model.Message) (*model.Message, error) {
	out := cloneMessage(m)
	var err error
	if out.Email, err = s.cipher.Decrypt(m.Email); err != nil {
		return nil, fmt.Errorf("open email of %s: %w", m.ID, err)
	}
	if out.Phone, err = s.cipher.Decrypt(m.Phone); err != nil {
		return nil, fmt.Errorf("open phone of %s: %w", m.ID, err)
	}
	if out.Message, err = s.cipher.Decrypt(m.Message); err != nil {
		return nil, fmt.Errorf("open message of %s: %w", m.ID, err)
	}
	if out.IPAddress, err = s.cipher.Decrypt(m.IPAddress); err != nil {
		return nil, fmt.Errorf("open ip address of %s: %w", m.ID, err)
	}
	return out, nil
}

func (s messageSealer) openAll(ms []*model.Message) ([]*model.Message, error) {
	out := make([]*model.Message, 0, len(ms))
	for _, m := range ms {
		opened, err := s.open(m)
		if err != nil {
			return nil, err
		}
		out = append(out, opened)
	}
	return out, nil
}

func cloneMessage(m *model.Message) *model.Message {
	c := *m
	c.Tags = append([]string{}, m.Tags...)
	return &c
}
