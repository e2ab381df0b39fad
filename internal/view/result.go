// Package view описывает результат вычисления экрана и запасную страницу на случай ошибки.
package view

import (
	"bytes"
	"errors"
	"fmt"
	"io"
)

// Тексты запасной страницы.
const (
	FallbackTitle   = "Something went wrong"
	FallbackMessage = "We're sorry, but there was an error loading this page"
	FallbackAction  = "Back to Home"
)

// Renderer умеет отрисовать себя в w.
type Renderer interface {
	Render(w io.Writer) error
}

// Result — тагированный вариант: либо значение (Ok), либо ошибка (Failed).
type Result[T any] struct {
	value T
	err   error
	ok    bool
}

// Ok оборачивает успешно вычисленное значение.
func Ok[T any](value T) Result[T] {
	return Result[T]{value: value, ok: true}
}

// Failed оборачивает ошибку. Nil превращается в общую ошибку, чтобы вариант оставался Failed.
func Failed[T any](err error) Result[T] {
	if err == nil {
		err = errors.New("view failed")
	}
	return Result[T]{err: err}
}

// IsOk сообщает, содержит ли результат значение.
func (r Result[T]) IsOk() bool { return r.ok }

// Value возвращает значение и признак успеха.
func (r Result[T]) Value() (T, bool) { return r.value, r.ok }

// Err возвращает ошибку варианта Failed или nil.
func (r Result[T]) Err() error { return r.err }

// Unwrap возвращает значение и ошибку в привычной форме.
func (r Result[T]) Unwrap() (T, error) {
	if !r.ok {
		var zero T
		return zero, r.err
	}
	return r.value, nil
}

// RenderFallback пишет запасную страницу.
func RenderFallback(w io.Writer) error {
	_, err := fmt.Fprintf(w, "%s\n%s\n[%s]\n", FallbackTitle, FallbackMessage, FallbackAction)
	return err
}

// RenderOr отрисовывает значение результата или, если вычисление либо отрисовка не удались,
// запасную страницу. Частично отрисованный вывод в w не попадает.
// Nil возвращается только когда отрисовано само значение.
func RenderOr[T Renderer](w io.Writer, r Result[T]) error {
	value, err := r.Unwrap()
	if err == nil {
		var buf bytes.Buffer
		if err = value.Render(&buf); err == nil {
			_, err = w.Write(buf.Bytes())
			return err
		}
		err = fmt.Errorf("render: %w", err)
	}
	return errors.Join(err, RenderFallback(w))
}
