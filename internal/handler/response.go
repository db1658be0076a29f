package handler

import (
	"fmt"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/delifood-checkout/internal/domain/order"
)

func writeJSON(w http.ResponseWriter, status int, fields func(e *jx.Encoder)) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	e.ObjStart()
	fields(e)
	e.ObjEnd()

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

// writeSuccess writes a 200 body that starts with "success": true.
func writeSuccess(w http.ResponseWriter, fields func(e *jx.Encoder)) {
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Field("success", func(e *jx.Encoder) { e.Bool(true) })
		fields(e)
	})
}

func writeFailure(w http.ResponseWriter, status int, code order.Code, message string) {
	writeJSON(w, status, func(e *jx.Encoder) {
		failureFields(e, code, message)
	})
}

func failureFields(e *jx.Encoder, code order.Code, message string) {
	e.Field("success", func(e *jx.Encoder) { e.Bool(false) })
	e.Field("code", func(e *jx.Encoder) { e.Str(string(code)) })
	e.Field("message", func(e *jx.Encoder) { e.Str(message) })
}

// fail maps err to a status code and a user-facing message.
func fail(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, errMalformed) {
		writeFailure(w, http.StatusBadRequest, order.CodeBadRequest, "Solicitud inválida")
		return
	}

	var (
		code   = order.CodeOf(err)
		valErr *order.ValidationError
		trErr  *order.TransitionError
		iqErr  *order.InvalidQuantityError
	)
	switch code {
	case order.CodeEmptyCart:
		msg := "El carrito está vacío"
		if errors.As(err, &iqErr) {
			msg = fmt.Sprintf("Cantidad inválida para el producto %d", iqErr.ProductID)
		}
		writeFailure(w, http.StatusBadRequest, code, msg)
	case order.CodeMissingUser:
		msg := "Falta el usuario"
		if errors.Is(err, order.ErrUnknownUser) {
			msg = "Usuario no encontrado"
		}
		writeFailure(w, http.StatusBadRequest, code, msg)
	case order.CodeValidationFailed:
		errors.As(err, &valErr)
		writeJSON(w, http.StatusUnprocessableEntity, func(e *jx.Encoder) {
			failureFields(e, code, "No se pudo confirmar el pedido. Verifica stock y horario de servicio.")
			encodeQuoteFields(e, valErr.Quote)
		})
	case order.CodeNotFound:
		writeFailure(w, http.StatusNotFound, code, "Pedido no encontrado")
	case order.CodeInvalidTransition:
		errors.As(err, &trErr)
		msg := fmt.Sprintf("No se puede pasar de %s a %s", trErr.From.Label(), trErr.To.Label())
		if trErr.Conflict {
			msg = fmt.Sprintf("El pedido cambió mientras tanto, ahora está %s", trErr.From.Label())
		}
		writeFailure(w, http.StatusConflict, code, msg)
	case order.CodeBadRequest:
		msg := "Solicitud inválida"
		switch {
		case errors.Is(err, order.ErrInvalidStatus):
			msg = "Estado de pedido inválido"
		case errors.Is(err, order.ErrMissingRestaurant):
			msg = "Falta restaurantId"
		case errors.Is(err, order.ErrDuplicateIdempotencyKey):
			msg = "La clave de idempotencia ya fue usada"
		}
		writeFailure(w, http.StatusBadRequest, code, msg)
	default:
		zctx.From(r.Context()).Error("Request failed",
			zap.String("code", string(code)),
			zap.Error(err),
		)
		writeFailure(w, http.StatusServiceUnavailable, order.CodePersistenceFailed, "Error en el servidor")
	}
}
