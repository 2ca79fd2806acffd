package usecase

import "github.com/pedrosfaria2/email-verifier/internal/notification/entity"

var templates = map[entity.TriggerKey]entity.Template{
	entity.TriggerKeyRegistrationCode: {
		TriggerKey: entity.TriggerKeyRegistrationCode,
		Channel:    entity.ChannelEmail,
		Subject:    "Your {{.company_name}} confirmation code",
		TextBody: `Hello,

Use the code below to confirm {{.email}}:

    {{.confirmation_code}}

If you did not ask for this, ignore this message.{{if .support_email}}
Questions? Write to {{.support_email}}.{{end}}

(c) {{.year}} {{.company_name}}
`,
		HTMLBody: `<!doctype html>
<html>
  <body style="font-family: sans-serif;">
    <p>Hello,</p>
    <p>Use the code below to confirm <strong>{{.email}}</strong>:</p>
    <p style="font-size: 20px; font-family: monospace;">{{.confirmation_code}}</p>
    <p>If you did not ask for this, ignore this message.</p>
    {{if .support_email}}<p>Questions? Write to <a href="mailto:{{.support_email}}">{{.support_email}}</a>.</p>{{end}}
    <p style="color: #888;">&copy; {{.year}} {{.company_name}}</p>
  </body>
</html>
`,
	},
}
