package templates

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/JonMunkholm/roster/internal/core"
)

func TestErrorAlertEscapes(t *testing.T) {
	var buf bytes.Buffer
	if err := ErrorAlert("<script>x</script>", "Reintente", "IMP002").Render(context.Background(), &buf); err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	out := buf.String()
	if strings.Contains(out, "<script>") {
		t.Errorf("message not escaped: %s", out)
	}
	if !strings.Contains(out, "Código: IMP002") || !strings.Contains(out, "Reintente") {
		t.Errorf("missing action or code: %s", out)
	}
}

func TestImportSummaryPartial(t *testing.T) {
	sum := core.Aggregate([]core.SubmissionOutcome{
		{Record: core.CandidateRecord{Line: 2, Identifier: "1234"}, Success: true, Student: &core.PersistedStudent{}},
		{Record: core.CandidateRecord{Line: 3, Identifier: "5678"}, Error: core.MsgIdentifierExists},
	})
	res := &core.ImportResult{ImportID: "abc", Status: sum.Status(), Message: sum.Message(), Summary: &sum}

	var buf bytes.Buffer
	if err := ImportSummary(res).Render(context.Background(), &buf); err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	out := buf.String()
	for _, want := range []string{`data-status="partial_success"`, "Registrados: 1", "Fallidos: 1", "<td>3</td>", core.MsgIdentifierExists} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q: %s", want, out)
		}
	}
}

func TestImportSummaryAborted(t *testing.T) {
	res := &core.ImportResult{
		Status:          core.StatusAborted,
		Message:         "Importación rechazada: 7 errores encontrados.",
		Errors:          []core.ValidationError{{Line: 4, Message: core.MsgInvalidEmail}},
		RemainingErrors: 6,
	}

	var buf bytes.Buffer
	if err := ImportSummary(res).Render(context.Background(), &buf); err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "Línea 4: email no válido") || !strings.Contains(out, "y 6 errores más") {
		t.Errorf("unexpected output: %s", out)
	}
}

func TestImportSummaryEscapesRecordData(t *testing.T) {
	sum := core.Aggregate([]core.SubmissionOutcome{
		{Record: core.CandidateRecord{Line: 2, Identifier: "<b>1234</b>"}, Error: `fallo "raro" & <i>más</i>`},
	})
	res := &core.ImportResult{ImportID: `a"b`, Status: sum.Status(), Message: sum.Message(), Summary: &sum}

	var buf bytes.Buffer
	if err := ImportSummary(res).Render(context.Background(), &buf); err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	out := buf.String()
	for _, raw := range []string{"<b>", "<i>", `data-import-id="a"b"`} {
		if strings.Contains(out, raw) {
			t.Errorf("output contains unescaped %q: %s", raw, out)
		}
	}
	for _, want := range []string{"&lt;b&gt;1234&lt;/b&gt;", "&amp; &lt;i&gt;", `data-import-id="a&#34;b"`, `<table class="import-failures">`} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q: %s", want, out)
		}
	}
}

func TestImportSummaryWithoutFailures(t *testing.T) {
	sum := core.Aggregate([]core.SubmissionOutcome{
		{Record: core.CandidateRecord{Line: 2, Identifier: "1234"}, Success: true, Student: &core.PersistedStudent{}},
	})
	res := &core.ImportResult{ImportID: "abc", Status: sum.Status(), Message: sum.Message(), Summary: &sum}

	var buf bytes.Buffer
	if err := ImportSummary(res).Render(context.Background(), &buf); err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	out := buf.String()
	if strings.Contains(out, "import-failures") || strings.Contains(out, "import-errors") {
		t.Errorf("unexpected failure markup: %s", out)
	}
	if !strings.Contains(out, `data-status="full_success"`) || !strings.Contains(out, "Total: 1") {
		t.Errorf("unexpected output: %s", out)
	}
}
