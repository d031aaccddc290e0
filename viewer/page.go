package viewer

import "html/template"

// ReplaceCommand is the message sent by the page to accept the actual image.
const ReplaceCommand = "replaceImage"

// Messages shown to the user after the message endpoint is invoked.
const (
	ReplacedMessage  = "Expected image replaced with actual image."
	DismissedMessage = "Comparison dismissed."
)

var page = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html>
  <head>
    <meta charset="utf-8">
    <title>{{.Title}}</title>
  </head>
  <body>
    <div style="display: flex; justify-content: center; align-items: center; height: 90vh;">
      <img id="image" src="artifact.gif" style="max-width: 100%; max-height: 100%;" />
    </div>
    <p>
      {{.Expected}} vs {{.Actual}}:
      {{if .Diff.Match}}identical{{else}}{{.Diff.DifferentPixels}} of {{.Diff.TotalPixels}} pixels differ ({{printf "%.2f" .Diff.Percent}}%){{end}}
      {{with .Mask}}, {{.}}{{end}}
    </p>
    <button id="replace" onclick="postMessage({command: '{{.Command}}'})">Replace Expected Image with Actual Image</button>
    <button id="dismiss" onclick="dismiss()">Dismiss</button>
    <p id="status"></p>
    <script>
      function show(res) {
        return res.json().then(function(body) {
          document.getElementById('status').textContent = body.message || body.error || '';
        });
      }
      function postMessage(msg) {
        fetch('message', {method: 'POST', headers: {'Content-Type': 'application/json'}, body: JSON.stringify(msg)}).then(show);
      }
      function dismiss() {
        fetch('dismiss', {method: 'POST'}).then(show);
      }
    </script>
  </body>
</html>
`))
