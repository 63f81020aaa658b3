package mailer

import (
	"fmt"
	"html/template"
	"strings"
)

// The confirmation body mirrors the site's dark theme. Kept as a single
// html/template so the rendered output is deterministic and testable.
var confirmationTmpl = template.Must(template.New("confirmation").Parse(`<!DOCTYPE html>
<html>
  <head>
    <title>Neurolab Preorder Confirmation</title>
  </head>
  <body style="background-color:#09090B;padding:40px 0;font-family:'Inter Tight',sans-serif;">
    <div style="background-color:#18181B;border-radius:8px;margin:0 auto;padding:32px;max-width:600px;">
      <p style="font-size:28px;font-weight:bold;color:#ffffff;text-align:center;margin:0;">
        Welcome to <span style="color:#3B82F6;">Neurolab</span>
      </p>
      <p style="font-size:18px;color:#A1A1AA;text-align:center;margin:16px 0;">
        Your device preorder has been confirmed!
      </p>
      <hr style="border:none;border-top:1px solid #27272A;width:80px;margin:16px auto;" />
      <p style="font-size:16px;line-height:24px;color:#ffffff;margin-top:32px;">
        Hi {{.FirstName}},
      </p>
      <p style="font-size:16px;line-height:24px;color:#E4E4E7;">
        Thank you for preordering your Neurolab device! You're now part of an
        exclusive group getting early access to the next generation of
        brain-computer interface technology.
      </p>
      <table style="width:100%;color:#E4E4E7;font-size:14px;line-height:22px;margin:24px 0;">
        <tr><td>Order ID</td><td style="text-align:right;">{{.OrderID}}</td></tr>
        <tr><td>Devices</td><td style="text-align:right;">{{.DeviceQuantity}}</td></tr>
        <tr><td>Amount paid</td><td style="text-align:right;">{{.Amount}}</td></tr>
        <tr><td>Order date</td><td style="text-align:right;">{{.OrderDate}}</td></tr>
      </table>
      <p style="font-size:16px;line-height:24px;color:#E4E4E7;">
        We'll keep you updated throughout the development process and notify
        you as soon as your device is ready to ship.
      </p>
      <p style="font-size:16px;line-height:24px;color:#E4E4E7;margin-top:24px;">Cheers,</p>
      <p style="font-size:16px;font-weight:bold;color:#ffffff;margin-bottom:32px;">The Neurolab Team</p>
      <hr style="border:none;border-top:1px solid #27272A;margin:24px 0;" />
      <p style="font-size:12px;color:#71717A;text-align:center;margin:0;">
        &copy; Neurolab. All rights reserved.
      </p>
    </div>
  </body>
</html>
`))

// RenderConfirmation renders the confirmation email body for one order.
func RenderConfirmation(conf Confirmation) (string, error) {
	data := struct {
		Confirmation
		Amount string
	}{
		Confirmation: conf,
		Amount:       formatAmountCents(conf.AmountCents),
	}

	var buf strings.Builder
	if err := confirmationTmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func formatAmountCents(cents int64) string {
	return fmt.Sprintf("$%d.%02d", cents/100, cents%100)
}
