package bot

import (
	"context"
	"errors"
	"html/template"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"truckmitr/pkg/checkout"
	"truckmitr/pkg/logger"
)

const checkoutHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Options.Name}}</title>
<script src="https://checkout.razorpay.com/v1/checkout.js"></script>
</head>
<body style="font-family: sans-serif; text-align: center; padding-top: 3em">
<p id="status">Opening secure checkout...</p>
<script>
var callbackURL = {{.CallbackURL}};
var cancelURL = {{.CancelURL}};
var options = {{.Options}};

function post(url, fields) {
  var form = document.createElement("form");
  form.method = "POST";
  form.action = url;
  for (var k in fields) {
    var input = document.createElement("input");
    input.type = "hidden";
    input.name = k;
    input.value = fields[k] == null ? "" : fields[k];
    form.appendChild(input);
  }
  document.body.appendChild(form);
  form.submit();
}

options.handler = function (resp) {
  post(callbackURL, {
    razorpay_payment_id: resp.razorpay_payment_id,
    razorpay_subscription_id: resp.razorpay_subscription_id,
    razorpay_signature: resp.razorpay_signature
  });
};
options.modal = { ondismiss: function () { post(cancelURL, {}); } };

var rzp = new Razorpay(options);
rzp.on("payment.failed", function (r) {
  var e = r.error || {};
  post(callbackURL, {
    "error[code]": e.code,
    "error[description]": e.description,
    "error[source]": e.source,
    "error[step]": e.step,
    "error[reason]": e.reason
  });
});
rzp.open();
</script>
</body>
</html>`

const resultHTML = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><meta name="viewport" content="width=device-width, initial-scale=1"><title>TruckMitr</title></head>
<body style="font-family: sans-serif; text-align: center; padding-top: 3em">
<h2>{{.Title}}</h2>
<p>{{.Text}}</p>
</body>
</html>`

var pages = template.Must(template.Must(template.New("checkout").Parse(checkoutHTML)).New("result").Parse(resultHTML))

type resultView struct {
	Title string
	Text  string
}

// NewRouter serves the hosted checkout page, its callbacks, health and metrics.
func NewRouter(gateway *checkout.CallbackGateway, log logger.ILogger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.SetHTMLTemplate(pages)

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	h := &checkoutHandler{gateway: gateway, log: log}
	co := r.Group("/checkout/:subscription_id")
	{
		co.GET("", h.page)
		co.POST("/callback", h.callback)
		co.GET("/cancel", h.cancel)
		co.POST("/cancel", h.cancel)
	}
	return r
}

type checkoutHandler struct {
	gateway *checkout.CallbackGateway
	log     logger.ILogger
}

func (h *checkoutHandler) page(c *gin.Context) {
	id := c.Param("subscription_id")
	opts, ok := h.gateway.Pending(id)
	if !ok {
		c.HTML(http.StatusNotFound, "result", resultView{
			Title: "Link expired",
			Text:  "This payment link is no longer active. Start again from the bot.",
		})
		return
	}
	c.HTML(http.StatusOK, "checkout", gin.H{
		"Options":     opts,
		"CallbackURL": h.gateway.CallbackURL(id),
		"CancelURL":   h.gateway.CheckoutURL(id) + "/cancel",
	})
}

func (h *checkoutHandler) callback(c *gin.Context) {
	id := c.Param("subscription_id")

	var err error
	if paymentID := c.PostForm("razorpay_payment_id"); paymentID != "" {
		subID := c.PostForm("razorpay_subscription_id")
		if subID == "" {
			subID = id
		}
		err = h.gateway.Resolve(checkout.GatewayResponse{
			PaymentID:      paymentID,
			SubscriptionID: subID,
			Signature:      c.PostForm("razorpay_signature"),
		})
	} else {
		err = h.gateway.Reject(id, &checkout.GatewayError{
			Code:        checkout.ErrorCode(c.PostForm("error[code]")),
			Description: c.PostForm("error[description]"),
			Source:      c.PostForm("error[source]"),
			Step:        c.PostForm("error[step]"),
			Reason:      c.PostForm("error[reason]"),
		})
	}
	if errors.Is(err, checkout.ErrNoPendingCheckout) {
		c.HTML(http.StatusNotFound, "result", resultView{
			Title: "Link expired",
			Text:  "This payment link is no longer active. Start again from the bot.",
		})
		return
	}

	c.HTML(http.StatusOK, "result", resultView{
		Title: "Thank you",
		Text:  "You can return to Telegram now.",
	})
}

func (h *checkoutHandler) cancel(c *gin.Context) {
	_ = h.gateway.Cancel(c.Param("subscription_id"))
	c.HTML(http.StatusOK, "result", resultView{
		Title: "Payment cancelled",
		Text:  "You can return to Telegram now.",
	})
}

// RunServer serves handler until ctx is done.
func RunServer(ctx context.Context, port int, handler http.Handler, log logger.ILogger) error {
	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", logger.Int("port", port))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
