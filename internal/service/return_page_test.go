package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/adasoft/payment-system/cinetpay-gateway/internal/models"
)

func TestGetDisplayStatus(t *testing.T) {
	tests := []struct {
		name      string
		result    *models.StatusResult
		err       error
		wantClass string
		wantTitle string
		wantText  string
	}{
		{
			name:      "accepted",
			result:    &models.StatusResult{Code: "00", Status: models.GatewayAccepted},
			wantClass: ClassSuccess,
			wantTitle: "Paiement Réussi !",
		},
		{
			name:      "pending",
			result:    &models.StatusResult{Code: "662", Status: models.GatewayPending},
			wantClass: ClassPending,
			wantTitle: "Paiement en Cours",
		},
		{
			name:      "refused with reason",
			result:    &models.StatusResult{Code: "600", Status: models.GatewayRefused, Message: "PAYMENT_FAILED"},
			wantClass: ClassFailed,
			wantTitle: "Paiement Échoué",
			wantText:  "PAYMENT_FAILED",
		},
		{
			name:      "refused without reason",
			result:    &models.StatusResult{Code: "600", Status: models.GatewayRefused},
			wantClass: ClassFailed,
			wantText:  "Raison inconnue",
		},
		{
			name:      "gateway unreachable",
			err:       errors.New("connection refused"),
			wantClass: ClassUnverified,
			wantTitle: "Vérification Impossible",
			wantText:  "T1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := &fakeChecker{result: tt.result, err: tt.err}
			svc := NewReturnService(checker, zap.NewNop())

			got := svc.GetDisplayStatus(context.Background(), "T1")
			if got.Class != tt.wantClass {
				t.Errorf("Expected class %s, got %s", tt.wantClass, got.Class)
			}
			if tt.wantTitle != "" && got.Title != tt.wantTitle {
				t.Errorf("Expected title %q, got %q", tt.wantTitle, got.Title)
			}
			if tt.wantText != "" && !strings.Contains(got.Message, tt.wantText) {
				t.Errorf("Expected message to contain %q, got %q", tt.wantText, got.Message)
			}
			if checker.Calls() != 1 {
				t.Errorf("Expected one status check, got %d", checker.Calls())
			}
		})
	}
}

func TestGetDisplayStatus_MissingIDSkipsGateway(t *testing.T) {
	checker := &fakeChecker{}
	svc := NewReturnService(checker, zap.NewNop())

	got := svc.GetDisplayStatus(context.Background(), "  ")
	if got.Class != ClassMissing || got.Title != "Information Manquante" {
		t.Errorf("Unexpected display status %+v", got)
	}
	if checker.Calls() != 0 {
		t.Errorf("Gateway must not be called without an id")
	}
}

func TestGetDisplayStatusByToken(t *testing.T) {
	checker := &fakeChecker{result: &models.StatusResult{Code: "00", Status: models.GatewayAccepted}}
	svc := NewReturnService(checker, zap.NewNop())

	got := svc.GetDisplayStatusByToken(context.Background(), "tok-1")
	if got.Class != ClassSuccess {
		t.Errorf("Expected success, got %+v", got)
	}
	if len(checker.tokens) != 1 || checker.tokens[0] != "tok-1" {
		t.Errorf("Expected a token lookup, got %v", checker.tokens)
	}

	if got := svc.GetDisplayStatusByToken(context.Background(), ""); got.Class != ClassMissing {
		t.Errorf("Expected missing, got %+v", got)
	}
}
