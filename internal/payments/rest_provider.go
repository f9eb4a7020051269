package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/espacoamar/amanda-backend/pkg/logging"
)

// RESTProvider talks to the PSP's PIX API (cob endpoint, Efí-compatible
// schema).
type RESTProvider struct {
	baseURL    string
	apiKey     string
	pixKey     string
	httpClient *http.Client
	logger     *logging.Logger
}

// NewRESTProvider builds the PSP client. pixKey is the clinic's registered
// PIX key (CNPJ or random key).
func NewRESTProvider(baseURL, apiKey, pixKey string, logger *logging.Logger) (*RESTProvider, error) {
	if baseURL == "" || apiKey == "" || pixKey == "" {
		return nil, errors.New("payments: pix provider credentials missing")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &RESTProvider{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		pixKey:     pixKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}, nil
}

type pixChargeRequest struct {
	Calendario struct {
		Expiracao int `json:"expiracao"`
	} `json:"calendario"`
	Valor struct {
		Original string `json:"original"`
	} `json:"valor"`
	Chave              string `json:"chave"`
	SolicitacaoPagador string `json:"solicitacaoPagador,omitempty"`
}

type pixChargeResponse struct {
	TxID          string `json:"txid"`
	PixCopiaECola string `json:"pixCopiaECola"`
	Calendario    struct {
		Criacao   time.Time `json:"criacao"`
		Expiracao int       `json:"expiracao"`
	} `json:"calendario"`
}

// CreateCharge opens a cobrança with a deterministic txid (PUT /v2/cob/{txid}).
func (p *RESTProvider) CreateCharge(ctx context.Context, params ChargeParams) (*ChargeResult, error) {
	if params.TxID == "" {
		return nil, errors.New("payments: txid required")
	}
	if params.ExpiresIn <= 0 {
		params.ExpiresIn = 24 * time.Hour
	}

	var body pixChargeRequest
	body.Calendario.Expiracao = int(params.ExpiresIn.Seconds())
	body.Valor.Original = formatAmount(params.AmountCents)
	body.Chave = p.pixKey
	body.SolicitacaoPagador = params.Description

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("payments: charge encode failed: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v2/cob/%s", p.baseURL, params.TxID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("payments: charge request failed: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("payments: psp unreachable: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("payments: psp returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var parsed pixChargeResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("payments: psp response decode failed: %w", err)
	}
	if parsed.PixCopiaECola == "" {
		return nil, errors.New("payments: psp response missing pixCopiaECola")
	}

	expiresAt := parsed.Calendario.Criacao.Add(time.Duration(parsed.Calendario.Expiracao) * time.Second)
	if parsed.Calendario.Criacao.IsZero() {
		expiresAt = time.Now().UTC().Add(params.ExpiresIn)
	}

	p.logger.Info("pix charge created", "txid", params.TxID, "amount", body.Valor.Original)
	return &ChargeResult{
		TxID:      params.TxID,
		QRCode:    parsed.PixCopiaECola,
		ExpiresAt: expiresAt,
	}, nil
}
