package controller

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ikkim/storefront-cart/internal/cart"
	"github.com/ikkim/storefront-cart/internal/errors"
	"github.com/ikkim/storefront-cart/internal/export"
	"github.com/ikkim/storefront-cart/internal/middleware"
	"github.com/ikkim/storefront-cart/internal/registry"
	"github.com/ikkim/storefront-cart/internal/storage"
)

// QuoteUploader stores a rendered quote and returns where to fetch it.
type QuoteUploader interface {
	UploadQuote(ctx context.Context, clientID string, body []byte) (*storage.QuoteUpload, error)
}

type CartController struct {
	uploader QuoteUploader
}

// NewCartController creates the cart endpoints. uploader may be nil, in
// which case quotes are streamed back directly.
func NewCartController(uploader QuoteUploader) *CartController {
	return &CartController{uploader: uploader}
}

type CartLineRequest struct {
	ProductID int64 `json:"productId" binding:"required,gt=0"`
	VariantID int64 `json:"variantId" binding:"required,gt=0"`
	SizeID    int64 `json:"sizeId" binding:"required,gt=0"`
}

func (r CartLineRequest) Line() cart.Line {
	return cart.Line{ProductID: r.ProductID, VariantID: r.VariantID, SizeID: r.SizeID}
}

type AddToCartRequest struct {
	CartLineRequest
	Quantity int `json:"quantity" binding:"required,gt=0"`
}

// UpdateCartRequest allows 0 and below, which removes the line.
type UpdateCartRequest struct {
	CartLineRequest
	Quantity *int `json:"quantity" binding:"required"`
}

// operationContext detaches cart operations from the request so a client
// disconnect does not leave the shared cart state in error.
func operationContext(c *gin.Context) context.Context {
	return context.WithoutCancel(c.Request.Context())
}

func sessionOrAbort(c *gin.Context) (*registry.Session, bool) {
	s, ok := middleware.GetSession(c)
	if !ok {
		errors.RespondWithError(c, http.StatusInternalServerError, errors.ClientSessionUnavailable, "Your cart is not available right now")
		return nil, false
	}
	return s, true
}

// respondWithBindError reports per-field validation failures, or msg when
// the body could not be parsed at all.
func respondWithBindError(c *gin.Context, err error, msg string) {
	middleware.GetLoggerFromContext(c).Warn("Invalid cart request", map[string]interface{}{
		"error": err.Error(),
	})
	if fields, ok := errors.ValidationFields(err); ok {
		errors.RespondWithValidationError(c, fields)
		return
	}
	errors.BadRequest(c, errors.ValidationInvalidInput, msg)
}

// respondWithState returns the cart state after an operation, or the
// operation's error. The state is the client's shared store, so with
// concurrent requests from one client it reflects whichever operation
// settled last.
func respondWithState(c *gin.Context, s *registry.Session) {
	state := s.Store.State()
	if state.Error != nil {
		errors.RespondWithError(c, http.StatusUnprocessableEntity, errors.CartOperationFailed, *state.Error)
		return
	}
	c.JSON(http.StatusOK, state)
}

// GetCart returns the client's current cart state
// GET /api/v1/cart
func (ctrl *CartController) GetCart(c *gin.Context) {
	s, ok := sessionOrAbort(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, s.Store.State())
}

// GetCount returns the number of items in the cart
// GET /api/v1/cart/count
func (ctrl *CartController) GetCount(c *gin.Context) {
	s, ok := sessionOrAbort(c)
	if !ok {
		return
	}

	count, err := s.Gateway.GetCount(c.Request.Context())
	if err != nil {
		middleware.GetLoggerFromContext(c).Warn("Failed to fetch cart count", map[string]interface{}{
			"error": err.Error(),
		})
		errors.RespondWithParsedError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": count})
}

// AddItem adds a product line to the cart
// POST /api/v1/cart/items
func (ctrl *CartController) AddItem(c *gin.Context) {
	s, ok := sessionOrAbort(c)
	if !ok {
		return
	}

	var req AddToCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithBindError(c, err, "productId, variantId, sizeId and a positive quantity are required")
		return
	}

	s.Carts.AddToCart(operationContext(c), req.Line(), req.Quantity)
	respondWithState(c, s)
}

// UpdateItem sets the quantity of a line; 0 or less removes it
// PUT /api/v1/cart/items
func (ctrl *CartController) UpdateItem(c *gin.Context) {
	s, ok := sessionOrAbort(c)
	if !ok {
		return
	}

	var req UpdateCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithBindError(c, err, "productId, variantId, sizeId and quantity are required")
		return
	}

	s.Carts.UpdateQuantity(operationContext(c), req.Line(), *req.Quantity)
	respondWithState(c, s)
}

// RemoveItem removes a line from the cart
// DELETE /api/v1/cart/items
func (ctrl *CartController) RemoveItem(c *gin.Context) {
	s, ok := sessionOrAbort(c)
	if !ok {
		return
	}

	var req CartLineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithBindError(c, err, "productId, variantId and sizeId are required")
		return
	}

	s.Carts.RemoveFromCart(operationContext(c), req.Line())
	respondWithState(c, s)
}

// ClearCart empties the cart
// DELETE /api/v1/cart
func (ctrl *CartController) ClearCart(c *gin.Context) {
	s, ok := sessionOrAbort(c)
	if !ok {
		return
	}
	s.Carts.ClearCart(operationContext(c))
	respondWithState(c, s)
}

// RefreshCart reloads the cart from the backend
// POST /api/v1/cart/refresh
func (ctrl *CartController) RefreshCart(c *gin.Context) {
	s, ok := sessionOrAbort(c)
	if !ok {
		return
	}
	s.Carts.RefreshCart(operationContext(c))
	respondWithState(c, s)
}

// GetQuote exports the cart as an XLSX quote
// GET /api/v1/cart/quote
func (ctrl *CartController) GetQuote(c *gin.Context) {
	s, ok := sessionOrAbort(c)
	if !ok {
		return
	}
	log := middleware.GetLoggerFromContext(c)

	var buf bytes.Buffer
	if err := export.WriteQuote(&buf, s.Store.State().Cart); err != nil {
		log.Error("Failed to build quote", err, nil)
		errors.RespondWithError(c, http.StatusInternalServerError, errors.QuoteExportFailed, "The quote could not be created")
		return
	}

	if ctrl.uploader == nil {
		filename := fmt.Sprintf("quote-%s.xlsx", time.Now().Format("20060102-150405"))
		c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
		c.Data(http.StatusOK, export.QuoteContentType, buf.Bytes())
		return
	}

	upload, err := ctrl.uploader.UploadQuote(c.Request.Context(), s.ClientID, buf.Bytes())
	if err != nil {
		log.Error("Failed to upload quote", err, nil)
		errors.RespondWithError(c, http.StatusBadGateway, errors.QuoteUploadFailed, "The quote could not be stored")
		return
	}
	c.JSON(http.StatusOK, upload)
}

// Search runs a debounced product search; only the newest query of a
// client gets results
// GET /api/v1/search?q=
func (ctrl *CartController) Search(c *gin.Context) {
	s, ok := sessionOrAbort(c)
	if !ok {
		return
	}

	results, err := s.Search.Do(c.Request.Context(), c.Query("q"))
	if err != nil {
		errors.RespondWithParsedError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}
