package gateway

import (
	"bytes"
	"html/template"
	"net/http"

	"github.com/rs/zerolog/log"
)

// PageData is rendered into the participant page.
type PageData struct {
	Title     string
	DisplayID string
	WSPath    string
}

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
  body { font-family: sans-serif; text-align: center; margin-top: 10vh; }
  canvas { border: 1px solid #ddd; }
  .choice-btn { font-size: 1.1em; padding: 0.5em 1.2em; }
  #status { color: #888; margin-top: 2em; }
</style>
</head>
<body>
<div id="{{.DisplayID}}"></div>
<div id="status">Connecting...</div>
<script>
(function () {
  const displayID = {{.DisplayID}};
  const wsPath = {{.WSPath}};
  const display = document.getElementById(displayID);
  const status = document.getElementById("status");
  const params = new URLSearchParams(window.location.search);
  const scheme = window.location.protocol === "https:" ? "wss://" : "ws://";
  const ws = new WebSocket(scheme + window.location.host + wsPath + "?participant=" +
    encodeURIComponent(params.get("participant") || "anonymous"));

  function replay(canvas) {
    const ctx = canvas.getContext("2d");
    const cmds = JSON.parse(canvas.dataset.draw || "[]");
    for (const c of cmds) {
      const a = c.args || [];
      ctx.fillStyle = c.color || "#000";
      ctx.strokeStyle = c.color || "#000";
      switch (c.op) {
        case "clear": ctx.fillRect(0, 0, canvas.width, canvas.height); break;
        case "rect": ctx.fillRect(a[0], a[1], a[2], a[3]); break;
        case "line": ctx.beginPath(); ctx.moveTo(a[0], a[1]); ctx.lineTo(a[2], a[3]); ctx.lineWidth = 3; ctx.stroke(); break;
        case "circle": ctx.beginPath(); ctx.arc(a[0], a[1], a[2], 0, 2 * Math.PI); ctx.fill(); break;
        case "text":
          ctx.font = a[2] + "px sans-serif"; ctx.textAlign = "center"; ctx.textBaseline = "middle";
          ctx.fillText(c.text, a[0], a[1]); break;
      }
    }
  }

  // Reaction times are measured here, from the first frame showing a trial
  // to the click, so network delay is not counted.
  let shownTrial = -1;
  let shownAt = null;
  let hideTimer = null;
  let hidden = false;

  function hideStimulus() {
    hidden = true;
    const region = document.getElementById("choice-response-stimulus");
    if (region) region.style.visibility = "hidden";
  }

  function presented(data) {
    if (data.html === "") return;
    if (data.trial_index === shownTrial) {
      if (hidden) hideStimulus();
      return;
    }
    shownTrial = data.trial_index;
    shownAt = null;
    hidden = false;
    clearTimeout(hideTimer);
    requestAnimationFrame(function () {
      shownAt = performance.now();
      if (data.stimulus_duration_ms != null) {
        hideTimer = setTimeout(hideStimulus, data.stimulus_duration_ms);
      }
    });
  }

  display.addEventListener("click", function (ev) {
    const wrapper = ev.target.closest(".choice-response-button");
    if (!wrapper || wrapper.getAttribute("aria-disabled") === "true") return;
    const msg = { type: "click", choice: Number(wrapper.dataset.choice) };
    if (shownAt !== null) msg.rt_ms = performance.now() - shownAt;
    ws.send(JSON.stringify(msg));
  });

  ws.onmessage = function (msg) {
    const ev = JSON.parse(msg.data);
    switch (ev.type) {
      case "SessionStarted":
        status.textContent = "";
        break;
      case "Render":
        display.innerHTML = ev.data.html;
        display.querySelectorAll("canvas[data-draw]").forEach(replay);
        presented(ev.data);
        if (ev.data.html !== "") status.textContent = "Trial " + (ev.data.trial_index + 1) + " of " + ev.data.trial_count;
        break;
      case "SessionCompleted":
        display.innerHTML = "";
        status.textContent = "Done. Thank you!";
        break;
      case "SessionFailed":
        status.textContent = "Session stopped: " + ev.data.error;
        break;
    }
  };
  ws.onclose = function () {
    if (status.textContent === "") status.textContent = "Disconnected.";
  };
})();
</script>
</body>
</html>
`))

// PageHandler serves the participant page.
func PageHandler(data PageData) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		var buf bytes.Buffer
		if err := pageTemplate.Execute(&buf, data); err != nil {
			log.Error().Err(err).Msg("failed to render participant page")
			http.Error(w, "failed to render page", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(buf.Bytes())
	}
}
