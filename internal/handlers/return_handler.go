package handlers

import (
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/adasoft/payment-system/cinetpay-gateway/internal/models"
	"github.com/adasoft/payment-system/cinetpay-gateway/internal/service"
)

const returnTemplateName = "return.html"

const returnPage = `<!DOCTYPE html>
<html lang="fr">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Statut de votre paiement - Adasoft</title>
    <style>
        body { font-family: sans-serif; background-color: #f4f4f7; display: flex; justify-content: center; align-items: center; min-height: 100vh; margin: 0; padding: 1rem; }
        .status-card { background-color: #fff; border-radius: 12px; box-shadow: 0 8px 30px rgba(0,0,0,0.1); padding: 2.5rem; text-align: center; max-width: 500px; border-top: 5px solid #ffc107; }
        .status-card.success { border-color: #28a745; }
        .status-card.error { border-color: #dc3545; }
        .status-card.pending { border-color: #17a2b8; }
        p { color: #555; line-height: 1.6; }
        .home-link { display: inline-block; margin-top: 1.5rem; padding: 0.8rem 1.5rem; background-color: #1d0e0e; color: #fff; text-decoration: none; border-radius: 50px; }
    </style>
</head>
<body>
    <div class="status-card {{.Class}}">
        <h1>{{.Title}}</h1>
        <p>{{.Message}}</p>
        <a href="/" class="home-link">Retourner à l'accueil</a>
    </div>
</body>
</html>
`

// ReturnTemplate is registered on the engine with SetHTMLTemplate.
func ReturnTemplate() *template.Template {
	return template.Must(template.New(returnTemplateName).Parse(returnPage))
}

type ReturnHandler struct {
	svc *service.ReturnService
}

func NewReturnHandler(svc *service.ReturnService) *ReturnHandler {
	return &ReturnHandler{svc: svc}
}

// Return renders the page the customer lands on after checkout. It always
// answers 200; the page content carries the outcome.
func (h *ReturnHandler) Return(c *gin.Context) {
	// The gateway sends either the transaction id or the payment token.
	ctx := c.Request.Context()
	transactionID := c.Request.FormValue("transaction_id")
	token := c.Request.FormValue("token")

	var status models.DisplayStatus
	if transactionID == "" && token != "" {
		status = h.svc.GetDisplayStatusByToken(ctx, token)
	} else {
		status = h.svc.GetDisplayStatus(ctx, transactionID)
	}
	c.HTML(http.StatusOK, returnTemplateName, status)
}
