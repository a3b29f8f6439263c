package translate

import (
	"github.com/minios-linux/potranslate/pofile"
)

// apply stores texts as the translations of the batch's entries. Plural
// entries receive the text in every plural form.
func apply(f *pofile.File, b Batch, texts []string) {
	nplurals := f.NPlurals()
	for i, it := range b.Items {
		setTarget(f.Entries[it.Index], texts[i], nplurals)
	}
}

func setTarget(e *pofile.Entry, text string, nplurals int) {
	if e.MsgIDPlural == "" {
		e.MsgStr = text
		return
	}
	forms := make(map[int]string, nplurals)
	for i := 0; i < nplurals; i++ {
		forms[i] = text
	}
	e.MsgStrPlural = forms
}

// Finalize records the target language in the catalog header and turns
// off line wrapping for rewritten strings.
func Finalize(f *pofile.File, targetLang string) {
	f.SetHeaderField("Language", targetLang)
	f.WrapWidth = 0
}
