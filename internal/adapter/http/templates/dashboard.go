package templates

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/a-h/templ"

	"github.com/bnema/vodpipe/internal/domain"
	"github.com/bnema/vodpipe/internal/service"
)

// Dashboard renders the queue page. Rows that are still moving follow their
// job over the event stream.
func Dashboard(status *service.QueueStatus, jobs []*domain.Job) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, `<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`+
			`<title>vodpipe queue</title><style>`+dashboardCSS+`</style></head><body><main>`); err != nil {
			return err
		}
		if err := queueSummary(status).Render(ctx, w); err != nil {
			return err
		}
		if err := jobTable(jobs).Render(ctx, w); err != nil {
			return err
		}
		_, err := io.WriteString(w, `</main><script>`+dashboardJS+`</script></body></html>`)
		return err
	})
}

func queueSummary(status *service.QueueStatus) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		state := "stopped"
		if status.Running {
			state = "running"
		}
		if _, err := fmt.Fprintf(w, `<header><h1>Transcode queue</h1><p class="worker %s">worker %s, %d slots</p><ul class="counts">`,
			state, state, status.Concurrency); err != nil {
			return err
		}
		for _, st := range domain.JobStatuses {
			if _, err := fmt.Fprintf(w, `<li class="%s">%s <strong>%d</strong></li>`, st, st, status.Counts[st]); err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, `</ul></header>`)
		return err
	})
}

func jobTable(jobs []*domain.Job) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if len(jobs) == 0 {
			_, err := io.WriteString(w, `<p class="empty">No jobs.</p>`)
			return err
		}
		if _, err := io.WriteString(w, `<table><thead><tr><th>ID</th><th>Source</th><th>Status</th>`+
			`<th>Progress</th><th>Message</th><th>Created</th></tr></thead><tbody>`); err != nil {
			return err
		}
		for _, job := range jobs {
			if err := jobRow(job).Render(ctx, w); err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, `</tbody></table>`)
		return err
	})
}

func jobRow(job *domain.Job) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		live := ""
		if !job.IsTerminal() {
			live = ` data-live="true"`
		}
		_, err := fmt.Fprintf(w,
			`<tr id="job-%d" class="%s"%s><td>%d</td><td title="%s">%s</td><td class="status">%s</td>`+
				`<td><progress max="100" value="%d"></progress> <span class="pct">%d%%</span></td>`+
				`<td class="message">%s</td><td>%s</td></tr>`,
			job.ID, job.Status, live, job.ID,
			templ.EscapeString(job.SourcePath), templ.EscapeString(filepath.Base(job.SourcePath)),
			job.Status, job.Progress, job.Progress,
			templ.EscapeString(job.ErrorMessage), job.CreatedAt.UTC().Format("2006-01-02 15:04:05"))
		return err
	})
}

const dashboardCSS = `body{font-family:system-ui,sans-serif;margin:2rem;color:#222}` +
	`table{border-collapse:collapse;width:100%}th,td{padding:.4rem .6rem;border-bottom:1px solid #ddd;text-align:left}` +
	`.counts{display:flex;gap:1.5rem;list-style:none;padding:0}.failed .status{color:#b00}.complete .status{color:#070}` +
	`.message{max-width:30rem;overflow:hidden;text-overflow:ellipsis;white-space:nowrap}`

// dashboardJS follows live rows over the job event stream.
const dashboardJS = `document.querySelectorAll('tr[data-live]').forEach(function(row){` +
	`var id=row.id.slice(4);var es=new EventSource('/api/transcode/jobs/'+id+'/events');` +
	`function apply(e){var ev=JSON.parse(e.data);` +
	`if(ev.status){row.className=ev.status;row.querySelector('.status').textContent=ev.status;}` +
	`row.querySelector('progress').value=ev.progress;row.querySelector('.pct').textContent=ev.progress+'%';` +
	`if(ev.message){row.querySelector('.message').textContent=ev.message;}` +
	`if(ev.status==='complete'||ev.status==='failed'){es.close();}}` +
	`es.addEventListener('status',apply);es.addEventListener('progress',apply);` +
	`es.addEventListener('deleted',function(){es.close();row.remove();});});`
