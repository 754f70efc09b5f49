package events

import (
	"context"
	"fmt"
	"strings"

	"github.com/skip2/go-qrcode"
)

const qrSize = 256

// ShareQR renders a PNG QR code pointing at the public page of the event.
func (s *Service) ShareQR(ctx context.Context, eventID, baseURL string) ([]byte, error) {
	ev, err := s.DB.GetEventByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	link := fmt.Sprintf("%s/v1/events/%s", strings.TrimRight(baseURL, "/"), ev.ID)

	png, err := qrcode.Encode(link, qrcode.Medium, qrSize)
	if err != nil {
		return nil, fmt.Errorf("failed to encode qr for event %s: %w", ev.ID, err)
	}
	return png, nil
}
