package mail

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"
)

const welcomeTpl = `<!DOCTYPE html>
<html lang="es">
<head>
  <meta http-equiv="Content-Type" content="text/html; charset=UTF-8" />
</head>
<body style="background-color:#faf7f2;margin:0 auto;font-family:ui-sans-serif,system-ui,-apple-system,BlinkMacSystemFont,Segoe UI,Roboto,Helvetica Neue,Arial,sans-serif;padding:.5rem">
  <table align="center" width="100%" role="presentation" cellspacing="0" cellpadding="0" border="0" style="max-width:100%;border-radius:.375rem;box-shadow:0 4px 6px -1px rgb(0 0 0 / .1);margin:40px auto;padding:24px;width:550px;background:#fff;border:1px solid rgb(217,119,87)">
    <tbody>
      <tr><td>
        <h1 style="color:#2d2a26;font-size:20px;font-weight:600;text-align:center;margin:24px 0">¡Bienvenid@ a {{.StoreName}}{{if .Name}}, {{.Name}}{{end}}!</h1>
        <p style="font-size:14px;line-height:24px;margin:16px 0;color:#2d2a26">Gracias por suscribirte a nuestro boletín. Como regalo de bienvenida te dejamos un descuento del <strong>{{.DiscountPercent}}%</strong> en tu próxima compra:</p>
        <table align="center" width="100%" role="presentation" border="0" cellpadding="0" cellspacing="0" style="background-color:rgb(250,240,230);border-radius:.75rem;padding:1rem;text-align:center">
          <tbody><tr><td><p style="font-size:18px;letter-spacing:.2em;font-weight:700;margin:12px 0;color:rgb(217,119,87)">{{.DiscountCode}}</p></td></tr></tbody>
        </table>
        <table align="center" width="100%" role="presentation" border="0" cellpadding="0" cellspacing="0" style="text-align:center;margin:32px 0">
          <tbody><tr><td>
            <a href="{{.ShopURL}}" target="_blank" style="line-height:100%;text-decoration:none;display:inline-block;max-width:100%;padding:12px 20px;background-color:rgb(217,119,87);border-radius:.25rem;color:#fff;font-size:12px;font-weight:600;text-align:center">Ir a la tienda</a>
          </td></tr></tbody>
        </table>
        <p style="font-size:14px;line-height:24px;margin:16px 0;color:#2d2a26"><strong>¿Qué puedes esperar?</strong></p>
        <ul style="font-size:13px;line-height:22px;color:#2d2a26;padding-left:1.2rem;margin:8px 0">
          <li>Novedades y lanzamientos antes que nadie</li>
          <li>Descuentos exclusivos para suscriptores</li>
          <li>Historias del taller, sin spam</li>
        </ul>
        <hr style="width:100%;border:none;border-top:1px solid #eaeaea;margin:26px 0" />
        <p style="font-size:10px;line-height:24px;margin:16px 0;text-align:center;color:rgb(156,163,175)">Este correo se ha enviado automáticamente, por favor no respondas directamente.<br />©{{year}} {{.StoreName}}</p>
      </td></tr>
    </tbody>
  </table>
</body>
</html>`

const newsletterTpl = `<!DOCTYPE html>
<html lang="es">
<head>
  <meta http-equiv="Content-Type" content="text/html; charset=UTF-8" />
</head>
<body style="background-color:#faf7f2;margin:0 auto;font-family:ui-sans-serif,system-ui,-apple-system,BlinkMacSystemFont,Segoe UI,Roboto,Helvetica Neue,Arial,sans-serif;padding:.5rem">
  {{if .PreviewText}}<div style="display:none;max-height:0;overflow:hidden">{{.PreviewText}}</div>{{end}}
  <table align="center" width="100%" role="presentation" cellspacing="0" cellpadding="0" border="0" style="max-width:100%;border-radius:.375rem;box-shadow:0 4px 6px -1px rgb(0 0 0 / .1);margin:40px auto;padding:24px;width:550px;background:#fff">
    <tbody>
      <tr><td>
        <p style="font-size:12px;letter-spacing:.1em;text-transform:uppercase;color:rgb(217,119,87);text-align:center;margin:12px 0">{{.StoreName}}</p>
        <h1 style="font-size:20px;text-align:center;color:#2d2a26">{{.Subject}}</h1>
        <div style="font-size:14px;line-height:24px;margin:16px 0;color:#2d2a26">{{.Content}}</div>
        <hr style="width:100%;border:none;border-top:1px solid #eaeaea;margin:26px 0" />
        <p style="font-size:10px;line-height:24px;margin:16px 0;text-align:center;color:rgb(156,163,175)">Recibes este correo porque estás suscrit@ a nuestro boletín.<br />©{{year}} {{.StoreName}}</p>
      </td></tr>
    </tbody>
  </table>
</body>
</html>`

const orderInternalTpl = `<!DOCTYPE html>
<html lang="es">
<head>
  <meta http-equiv="Content-Type" content="text/html; charset=UTF-8" />
</head>
<body style="background-color:#fff;margin:0 auto;font-family:ui-sans-serif,system-ui,-apple-system,BlinkMacSystemFont,Segoe UI,Roboto,Helvetica Neue,Arial,sans-serif;padding:.5rem">
  <table align="center" width="100%" role="presentation" cellspacing="0" cellpadding="0" border="0" style="max-width:100%;border:1px solid #eaeaea;border-radius:.375rem;margin:40px auto;padding:24px;width:600px">
    <tbody>
      <tr><td>
        <h1 style="font-size:18px;color:#2d2a26">Nuevo pedido {{.OrderNumber}}</h1>
        <p style="font-size:14px;line-height:22px;color:#2d2a26"><strong>Cliente:</strong> {{.CustomerName}}<br />
        <strong>Email:</strong> {{.CustomerEmail}}<br />
        <strong>Teléfono:</strong> {{.Phone}}<br />
        <strong>Dirección:</strong> {{.Address}}, {{.PostalCode}} {{.City}}</p>
        <table width="100%" cellpadding="6" cellspacing="0" style="border-collapse:collapse;font-size:13px;color:#2d2a26">
          <thead>
            <tr style="border-bottom:2px solid #eaeaea;text-align:left"><th>Producto</th><th>Cant.</th><th>Precio</th></tr>
          </thead>
          <tbody>
            {{range .Items}}<tr style="border-bottom:1px solid #f3f4f6"><td>{{.Name}}</td><td>{{.Quantity}}</td><td>{{money .UnitPrice}}</td></tr>{{end}}
          </tbody>
        </table>
        <p style="font-size:14px;line-height:22px;text-align:right;color:#2d2a26">Subtotal: {{money .Subtotal}}<br />Envío: {{money .Shipping}}<br /><strong>Total: {{money .Total}}</strong></p>
      </td></tr>
    </tbody>
  </table>
</body>
</html>`

const orderCustomerTpl = `<!DOCTYPE html>
<html lang="es">
<head>
  <meta http-equiv="Content-Type" content="text/html; charset=UTF-8" />
</head>
<body style="background-color:#faf7f2;margin:0 auto;font-family:ui-sans-serif,system-ui,-apple-system,BlinkMacSystemFont,Segoe UI,Roboto,Helvetica Neue,Arial,sans-serif;padding:.5rem">
  <table align="center" width="100%" role="presentation" cellspacing="0" cellpadding="0" border="0" style="max-width:100%;border-radius:.375rem;box-shadow:0 4px 6px -1px rgb(0 0 0 / .1);margin:40px auto;padding:24px;width:550px;background:#fff">
    <tbody>
      <tr><td>
        <h1 style="font-size:20px;text-align:center;color:#2d2a26">¡Gracias por tu pedido{{if .CustomerName}}, {{.CustomerName}}{{end}}!</h1>
        <p style="font-size:14px;line-height:24px;color:#2d2a26">Hemos recibido tu pedido <strong>{{.OrderNumber}}</strong> y lo estamos preparando con mucho cariño.</p>
        <table align="center" width="100%" role="presentation" border="0" cellpadding="0" cellspacing="0" style="background-color:rgb(250,240,230);border-radius:.75rem;padding:0 1rem">
          <tbody><tr><td><p style="font-size:13px;line-height:22px;margin:16px 0;color:#2d2a26"><strong>Envío a:</strong><br />{{.Address}}<br />{{.PostalCode}} {{.City}}</p></td></tr></tbody>
        </table>
        <p style="font-size:14px;line-height:24px;text-align:right;color:#2d2a26"><strong>Total: {{money .Total}}</strong></p>
        <p style="font-size:13px;line-height:22px;color:#2d2a26">Adjuntamos el resumen de tu pedido en PDF. Te avisaremos cuando salga de camino.</p>
        <hr style="width:100%;border:none;border-top:1px solid #eaeaea;margin:26px 0" />
        <p style="font-size:10px;line-height:24px;margin:16px 0;text-align:center;color:rgb(156,163,175)">Este correo se ha enviado automáticamente, por favor no respondas directamente.<br />©{{year}} {{.StoreName}}</p>
      </td></tr>
    </tbody>
  </table>
</body>
</html>`

// WelcomeData is the data for welcome emails.
type WelcomeData struct {
	StoreName       string
	Name            string
	DiscountCode    string
	DiscountPercent int
	ShopURL         string
}

// NewsletterData is the data for newsletter broadcast emails.
type NewsletterData struct {
	StoreName   string
	Subject     string
	PreviewText string
	Content     template.HTML
}

// OrderLine is one line item in an order email.
type OrderLine struct {
	Name      string
	Quantity  int
	UnitPrice float64
}

// OrderData feeds both the internal notification and the customer confirmation.
type OrderData struct {
	StoreName     string
	OrderNumber   string
	CustomerName  string
	CustomerEmail string
	Phone         string
	Address       string
	City          string
	PostalCode    string
	Items         []OrderLine
	Subtotal      float64
	Shipping      float64
	Total         float64
}

func renderTemplate(tpl string, data interface{}) (string, error) {
	t, err := template.New("").Funcs(template.FuncMap{
		"year": func() int {
			return time.Now().Year()
		},
		"money": func(v float64) string {
			return fmt.Sprintf("%.2f €", v)
		},
	}).Parse(tpl)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// NewWelcomeMessage renders the welcome email for a new subscriber.
func NewWelcomeMessage(to string, data WelcomeData) (Message, error) {
	if strings.TrimSpace(data.StoreName) == "" {
		data.StoreName = "Casa Flora"
	}
	html, err := renderTemplate(welcomeTpl, data)
	if err != nil {
		return Message{}, err
	}
	return Message{
		To:      []string{to},
		Subject: fmt.Sprintf("¡Bienvenid@ a %s! Tu regalo te espera", data.StoreName),
		HTML:    html,
	}, nil
}

// NewNewsletterMessage renders a newsletter broadcast for a batch of recipients.
func NewNewsletterMessage(to []string, data NewsletterData) (Message, error) {
	if strings.TrimSpace(data.StoreName) == "" {
		data.StoreName = "Casa Flora"
	}
	html, err := renderTemplate(newsletterTpl, data)
	if err != nil {
		return Message{}, err
	}
	return Message{
		To:      to,
		Subject: data.Subject,
		HTML:    html,
	}, nil
}

// NewOrderInternalMessage renders the business-facing order notification.
func NewOrderInternalMessage(to string, data OrderData, pdf []byte) (Message, error) {
	html, err := renderTemplate(orderInternalTpl, data)
	if err != nil {
		return Message{}, err
	}
	msg := Message{
		To:      []string{to},
		Subject: fmt.Sprintf("Nuevo pedido %s", data.OrderNumber),
		HTML:    html,
	}
	if len(pdf) > 0 {
		msg.Attachments = append(msg.Attachments, pdfAttachment(data.OrderNumber, pdf))
	}
	return msg, nil
}

// NewOrderConfirmationMessage renders the customer-facing order confirmation.
func NewOrderConfirmationMessage(to string, data OrderData, pdf []byte) (Message, error) {
	if strings.TrimSpace(data.StoreName) == "" {
		data.StoreName = "Casa Flora"
	}
	html, err := renderTemplate(orderCustomerTpl, data)
	if err != nil {
		return Message{}, err
	}
	msg := Message{
		To:      []string{to},
		Subject: fmt.Sprintf("Confirmación de tu pedido %s", data.OrderNumber),
		HTML:    html,
	}
	if len(pdf) > 0 {
		msg.Attachments = append(msg.Attachments, pdfAttachment(data.OrderNumber, pdf))
	}
	return msg, nil
}

func pdfAttachment(orderNumber string, pdf []byte) Attachment {
	return Attachment{
		Filename:    fmt.Sprintf("pedido-%s.pdf", orderNumber),
		ContentType: "application/pdf",
		Data:        pdf,
	}
}
