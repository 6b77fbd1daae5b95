package tui

import (
	"context"
	"errors"

	"charm.land/bubbles/v2/spinner"
	tea "charm.land/bubbletea/v2"

	"github.com/heronai/heron/internal/pipeline"
)

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		// Viewport height: total minus input, separators and help bar
		inputHeight := m.input.Height() + promptLines
		fixedHeight := separatorLines + inputHeight + helpLines
		vpHeight := max(msg.Height-fixedHeight, minViewport)

		m.viewport.SetWidth(msg.Width)
		m.viewport.SetHeight(vpHeight)
		m.input.SetWidth(msg.Width - 4) // Room for "> " prompt
		m.help.SetWidth(msg.Width)
		m.markdown.UpdateWidth(msg.Width)

		// Rebuild viewport content with new dimensions
		m.rebuildViewportContent()
		return m, nil

	case tea.MouseWheelMsg:
		// Forward mouse wheel to viewport for scrolling
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		// Rebuild viewport to animate the spinner while waiting
		if m.state == StateThinking {
			m.rebuildViewportContent()
		}
		return m, cmd

	case askDoneMsg:
		if msg.seq != m.askSeq || m.state != StateThinking {
			// Reply from an abandoned run
			return m, nil
		}
		m.state = StateInput
		if m.askCancel != nil {
			m.askCancel()
			m.askCancel = nil
		}

		if msg.res.Status == pipeline.StatusError {
			text := msg.res.FinalAnswer
			if text == "" {
				text = msg.res.Diagnostic
			}
			m.addMessage(Message{Role: roleError, Text: text})
		} else {
			m.addMessage(Message{
				Role: roleAssistant,
				Text: msg.res.FinalAnswer,
				Meta: resultMeta(msg.res),
			})
		}
		m.rebuildViewportContent()
		m.viewport.GotoBottom()
		// Re-focus textarea after the answer arrives
		return m, m.input.Focus()

	case askFailedMsg:
		if msg.seq != m.askSeq || m.state != StateThinking {
			return m, nil
		}
		m.state = StateInput
		if m.askCancel != nil {
			m.askCancel()
			m.askCancel = nil
		}

		switch {
		case errors.Is(msg.err, context.Canceled):
			m.addMessage(Message{Role: roleSystem, Text: "(Canceled)"})
		case errors.Is(msg.err, context.DeadlineExceeded):
			m.addMessage(Message{Role: roleError, Text: "Question timed out. Try again or ask something smaller."})
		default:
			m.addMessage(Message{Role: roleError, Text: msg.err.Error()})
		}
		m.rebuildViewportContent()
		m.viewport.GotoBottom()
		return m, m.input.Focus()
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}
