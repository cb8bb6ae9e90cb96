package control

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/netip"

	"quote_stream/internal/domain"
)

// wireRequest keeps addr as text so a bad address is reported as such
// rather than as a generic decode failure.
type wireRequest struct {
	Kind    string   `json:"kind"`
	Addr    string   `json:"addr"`
	Tickers []string `json:"tickers"`
}

// ReadRequest decodes one subscription request of at most maxBytes.
// Every rejection is a *domain.ProtocolError carrying the in-band message;
// other errors mean the connection itself failed.
func ReadRequest(r io.Reader, maxBytes int) (domain.SubscriptionRequest, error) {
	lr := &io.LimitedReader{R: r, N: int64(maxBytes)}

	var w wireRequest
	if err := json.NewDecoder(lr).Decode(&w); err != nil {
		var ne net.Error
		switch {
		case errors.As(err, &ne) && ne.Timeout():
			return domain.SubscriptionRequest{}, domain.NewProtocolError("Request timeout", err)
		case lr.N <= 0:
			return domain.SubscriptionRequest{}, domain.NewProtocolError(
				fmt.Sprintf("Request exceeds %d bytes", maxBytes), domain.ErrRequestTooLarge)
		case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
			return domain.SubscriptionRequest{}, domain.NewProtocolError("Incomplete request",
				fmt.Errorf("%w: %v", domain.ErrMalformedRequest, err))
		}
		var syn *json.SyntaxError
		var typ *json.UnmarshalTypeError
		if errors.As(err, &syn) || errors.As(err, &typ) {
			return domain.SubscriptionRequest{}, domain.NewProtocolError("Malformed request",
				fmt.Errorf("%w: %v", domain.ErrMalformedRequest, err))
		}
		return domain.SubscriptionRequest{}, err
	}

	return validate(w)
}

func validate(w wireRequest) (domain.SubscriptionRequest, error) {
	if w.Kind != domain.KindStream {
		return domain.SubscriptionRequest{}, domain.NewProtocolError(domain.MsgUnsupportedCommand, domain.ErrUnsupportedCommand)
	}

	addr, err := netip.ParseAddrPort(w.Addr)
	if err != nil {
		return domain.SubscriptionRequest{}, domain.NewProtocolError("Invalid address "+w.Addr,
			fmt.Errorf("%w: %v", domain.ErrInvalidAddress, err))
	}
	if addr.Port() == 0 {
		return domain.SubscriptionRequest{}, domain.NewProtocolError("Invalid address "+w.Addr, domain.ErrInvalidAddress)
	}

	return domain.SubscriptionRequest{
		Kind:    w.Kind,
		Addr:    domain.NormalizeAddr(addr),
		Tickers: w.Tickers,
	}, nil
}

// WriteResponse encodes resp as a single JSON line.
func WriteResponse(w io.Writer, resp domain.SubscriptionResponse) error {
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		return fmt.Errorf("write response: %w", err)
	}
	return nil
}
