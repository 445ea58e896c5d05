package notify

import "html/template"

var confirmationTemplate = template.Must(template.New("confirmation").Parse(`<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>Your DigiStore Purchase</title>
  <style>
    body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
    .container { max-width: 600px; margin: 0 auto; padding: 20px; }
    .header { background: #2563eb; color: white; padding: 30px; text-align: center; }
    .download-section { background: white; padding: 20px; margin: 20px 0; border-left: 4px solid #2563eb; }
    .download-link { display: inline-block; background: #2563eb; color: white; padding: 12px 24px; text-decoration: none; border-radius: 6px; }
    .footer { text-align: center; margin-top: 30px; color: #666; font-size: 14px; }
  </style>
</head>
<body>
  <div class="container">
    <div class="header">
      <h1>Thank You for Your Purchase!</h1>
    </div>
    <h2>Hi {{.CustomerName}},</h2>
    <p>Your purchase of <strong>"{{.ProductName}}"</strong> has been successfully processed.</p>
    <div class="download-section">
      <h3>Download Your Product</h3>
      <p>Your digital product is ready for immediate download:</p>
      {{range .DownloadLinks}}<a href="{{.}}" class="download-link">Download Now</a><br>
      {{end}}
      <p><strong>Order Reference:</strong> {{.OrderReference}}</p>
      <ul>
        <li>Links are valid for {{.ValidDays}} days from purchase date</li>
        <li>Amount paid: &#8358;{{.Amount}}</li>
      </ul>
    </div>
    <p>Thank you for choosing DigiStore.</p>
    <div class="footer">
      <p>This email was sent because you made a purchase on our platform.</p>
    </div>
  </div>
</body>
</html>
`))
