package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/adasoft/payment-system/cinetpay-gateway/internal/interfaces"
	"github.com/adasoft/payment-system/cinetpay-gateway/internal/models"
)

const (
	ClassSuccess    = "success"
	ClassFailed     = "error"
	ClassPending    = "pending"
	ClassUnverified = "unverified"
	ClassMissing    = "missing"
)

// ReturnService builds what the customer sees after the gateway redirects back.
// It only reads from the gateway; the return redirect is spoofable and never
// changes a transaction.
type ReturnService struct {
	checker interfaces.PaymentLookup
	logger  *zap.Logger
}

func NewReturnService(checker interfaces.PaymentLookup, logger *zap.Logger) *ReturnService {
	return &ReturnService{checker: checker, logger: logger.Named("return")}
}

func (s *ReturnService) GetDisplayStatus(ctx context.Context, transactionID string) models.DisplayStatus {
	return s.display(ctx, transactionID, s.checker.CheckStatus)
}

// GetDisplayStatusByToken serves redirects that carry only the checkout token.
func (s *ReturnService) GetDisplayStatusByToken(ctx context.Context, token string) models.DisplayStatus {
	return s.display(ctx, token, s.checker.CheckStatusByToken)
}

func (s *ReturnService) display(ctx context.Context, reference string, check func(context.Context, string) (*models.StatusResult, error)) models.DisplayStatus {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return models.DisplayStatus{
			Title:   "Information Manquante",
			Message: "Aucun identifiant de transaction n'a été fourni.",
			Class:   ClassMissing,
		}
	}

	res, err := check(ctx, reference)
	if err != nil {
		s.logger.Warn("Could not verify transaction for return page",
			zap.String("reference", reference),
			zap.Error(err),
		)
		return models.DisplayStatus{
			Title:   "Vérification Impossible",
			Message: "Nous n'avons pas pu vérifier le statut de votre paiement. Si vous avez été débité, contactez le support en indiquant la référence " + reference + ".",
			Class:   ClassUnverified,
		}
	}

	switch res.Status {
	case models.GatewayAccepted:
		return models.DisplayStatus{
			Title:   "Paiement Réussi !",
			Message: "Félicitations, votre paiement a été effectué avec succès. Votre commande est en cours de traitement et vous recevrez bientôt une confirmation par e-mail.",
			Class:   ClassSuccess,
		}
	case models.GatewayPending:
		return models.DisplayStatus{
			Title:   "Paiement en Cours",
			Message: "Votre paiement est en attente de confirmation. Vous recevrez un e-mail dès qu'il sera validé.",
			Class:   ClassPending,
		}
	default:
		reason := res.Message
		if reason == "" {
			reason = "Raison inconnue"
		}
		return models.DisplayStatus{
			Title:   "Paiement Échoué",
			Message: "Malheureusement, votre paiement n'a pas pu être validé. Raison : " + reason,
			Class:   ClassFailed,
		}
	}
}
