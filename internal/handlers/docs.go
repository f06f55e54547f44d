package handlers

import (
	"net/http"
)

const apiDocsHTML = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>FitRate Battle API Documentation</title>
    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, 'Helvetica Neue', Arial, sans-serif;
            line-height: 1.6;
            color: #333;
            background: linear-gradient(135deg, #667eea 0%, #764ba2 100%);
            min-height: 100vh;
            padding: 20px;
        }
        .container {
            max-width: 900px;
            margin: 0 auto;
            background: white;
            border-radius: 12px;
            box-shadow: 0 20px 60px rgba(0, 0, 0, 0.3);
            overflow: hidden;
        }
        header {
            background: linear-gradient(135deg, #1a1a2e 0%, #16213e 100%);
            color: white;
            padding: 30px 40px;
        }
        header p { color: rgba(255, 255, 255, 0.6); }
        main { padding: 30px 40px; }
        h2 { margin: 24px 0 12px; }
        .endpoint {
            border: 1px solid #e0e0e0;
            border-radius: 8px;
            padding: 16px 20px;
            margin-bottom: 16px;
        }
        .method {
            display: inline-block;
            font-weight: 700;
            padding: 2px 10px;
            border-radius: 4px;
            margin-right: 10px;
            color: white;
            background: #3b82f6;
        }
        .method.post { background: #22c55e; }
        .method.delete { background: #ef4444; }
        code {
            background: #f4f4f5;
            padding: 2px 6px;
            border-radius: 4px;
            font-size: 0.95em;
        }
        pre {
            background: #f4f4f5;
            padding: 12px 16px;
            border-radius: 8px;
            overflow-x: auto;
            margin: 8px 0;
        }
        ul { margin: 8px 0 8px 24px; }
    </style>
</head>
<body>
    <div class="container">
        <header>
            <h1>FitRate Battle API</h1>
            <p>Asynchronous 1v1 score battles with AI head-to-head judging</p>
        </header>
        <main>
            <h2>Identity</h2>
            <p>Send either a <code>Bearer</code> identity token (see
            <code>POST /api/identity/token</code>) or an <code>X-User-ID</code>
            header. A verified token always wins over body fields.</p>

            <h2>Battles</h2>
            <div class="endpoint">
                <span class="method post">POST</span><code>/api/battles</code>
                <p>Create a battle with your score (0&ndash;100), optional mode and thumbnail.</p>
                <pre>{"score": 72.3, "userId": "u1", "mode": "standard", "thumbnail": "..."}</pre>
                <p>Returns <code>201</code> with the battle projection. Share the
                <code>battleId</code> with an opponent. Battles expire after 24h and
                forfeit in your favor after 6h without a response.</p>
            </div>
            <div class="endpoint">
                <span class="method">GET</span><code>/api/battles/{battleId}</code>
                <p>Fetch a battle. Overdue battles resolve to a forfeit win for the
                creator on read. Expired battles return <code>404</code> unless
                <code>?includeExpired=true</code>.</p>
            </div>
            <div class="endpoint">
                <span class="method post">POST</span><code>/api/battles/{battleId}/join</code>
                <p>Open a battle as the opponent before responding. Idempotent for
                the creator and the bound opponent; <code>409</code> if someone else
                already holds the slot.</p>
            </div>
            <div class="endpoint">
                <span class="method post">POST</span><code>/api/battles/{battleId}/respond</code>
                <p>Submit the competing score. When both sides uploaded thumbnails
                the AI judge rescored them head-to-head
                (<code>scoresRecalculated: true</code>); otherwise the submitted
                scores decide and ties are possible. Re-submitting as the bound
                responder returns the same completed record.</p>
                <pre>{"score": 68.0, "userId": "u2", "thumbnail": "..."}</pre>
            </div>
            <div class="endpoint">
                <span class="method delete">DELETE</span><code>/api/battles/{battleId}</code>
                <p>Participants only. Creator-deleting an open battle cancels it
                immediately; otherwise the record fast-expires. Stored photos are
                gone for good.</p>
            </div>

            <h2>Notifications</h2>
            <div class="endpoint">
                <span class="method">GET</span><code>/ws</code>
                <p>WebSocket subscription for push events
                (<code>battle_joined</code>, <code>battle_completed</code>,
                <code>battle_forfeited</code>).</p>
            </div>
        </main>
    </div>
</body>
</html>
`

// ServeAPIDocs renders the API documentation page.
func ServeAPIDocs(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(apiDocsHTML))
}
