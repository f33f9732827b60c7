package http

import (
	"encoding/json"
	"fmt"
	"html"
	"strconv"

	x402 "github.com/x402labs/x402-go"
)

// PaywallConfig configures the HTML paywall served to browser requests.
type PaywallConfig struct {
	AppName              string `json:"appName,omitempty"`
	AppLogo              string `json:"appLogo,omitempty"`
	CDPClientKey         string `json:"cdpClientKey,omitempty"`
	SessionTokenEndpoint string `json:"sessionTokenEndpoint,omitempty"`
	Testnet              bool   `json:"testnet,omitempty"`
}

// generatePaywallHTML renders the browser paywall page for a challenge.
// Custom HTML takes precedence over the built-in template.
func generatePaywallHTML(challenge x402.PaymentRequired, config *PaywallConfig, customHTML string) string {
	if customHTML != "" {
		return customHTML
	}

	displayAmount := paywallDisplayAmount(challenge)

	resourceDesc := ""
	if challenge.Resource != nil {
		if challenge.Resource.Description != "" {
			resourceDesc = challenge.Resource.Description
		} else {
			resourceDesc = challenge.Resource.URL
		}
	}

	appLogo := ""
	appName := ""
	cdpClientKey := ""
	testnet := false

	if config != nil {
		if config.AppLogo != "" {
			appLogo = fmt.Sprintf(`<img src="%s" alt="%s" style="max-width: 200px; margin-bottom: 20px;">`,
				html.EscapeString(config.AppLogo),
				html.EscapeString(config.AppName))
		}
		appName = config.AppName
		cdpClientKey = config.CDPClientKey
		testnet = config.Testnet
	}

	challengeJSON, _ := json.Marshal(challenge)

	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
	<title>Payment Required</title>
	<meta charset="UTF-8">
	<meta name="viewport" content="width=device-width, initial-scale=1.0">
	<style>
		body {
			font-family: system-ui, -apple-system, sans-serif;
			margin: 0;
			padding: 0;
			background: #f5f5f5;
		}
		.container {
			max-width: 600px;
			margin: 50px auto;
			padding: 20px;
			background: white;
			border-radius: 8px;
			box-shadow: 0 2px 4px rgba(0,0,0,0.1);
		}
		.logo { margin-bottom: 20px; }
		h1 { color: #333; }
		.info { margin: 20px 0; }
		.info p { margin: 10px 0; }
		.amount {
			font-size: 24px;
			font-weight: bold;
			color: #0066cc;
			margin: 20px 0;
		}
		#payment-widget {
			margin-top: 30px;
			padding: 20px;
			border: 1px dashed #ccc;
			border-radius: 4px;
			background: #fafafa;
			text-align: center;
			color: #666;
		}
	</style>
</head>
<body>
	<div class="container">
		%s
		<h1>Payment Required</h1>
		<div class="info">
			<p><strong>Resource:</strong> %s</p>
			<p class="amount">Amount: $%.2f USDC</p>
		</div>
		<div id="payment-widget"
			data-requirements='%s'
			data-cdp-client-key="%s"
			data-app-name="%s"
			data-testnet="%t">
			<p>Loading payment widget...</p>
		</div>
	</div>
</body>
</html>`,
		appLogo,
		html.EscapeString(resourceDesc),
		displayAmount,
		html.EscapeString(string(challengeJSON)),
		html.EscapeString(cdpClientKey),
		html.EscapeString(appName),
		testnet,
	)
}

// paywallDisplayAmount converts the first offered amount to a display value,
// assuming a 6-decimal stablecoin.
func paywallDisplayAmount(challenge x402.PaymentRequired) float64 {
	if len(challenge.Accepts) == 0 {
		return 0
	}
	amount, err := strconv.ParseFloat(challenge.Accepts[0].Amount, 64)
	if err != nil {
		return 0
	}
	return amount / 1000000
}
